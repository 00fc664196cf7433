// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package topk implements the bounded reduction stage: a streaming top-N
// per key group. Rows are accumulated into a min-heap of size at most N;
// once the heap is full, each new row either displaces the current minimum
// or is dropped. Worst-case time is O(n log N) per group with O(N) space,
// regardless of group size.
package topk

import (
	"container/heap"
	"io"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/mrtab"
)

// Row is one scored record within a key group: the input fields minus the
// key column, with the numeric sort columns pre-parsed. All columns except
// the last are sort columns, compared in order, descending.
type Row struct {
	Fields  []string
	sortKey []float64
}

func parseRow(fields []string) (Row, error) {
	if len(fields) < 2 {
		return Row{}, errors.Newf("topk: row needs at least one sort column and a value: %v", fields)
	}
	key := make([]float64, len(fields)-1)
	for i, f := range fields[:len(fields)-1] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Row{}, errors.Wrapf(err, "topk: non-numeric sort column %q", f)
		}
		key[i] = v
	}
	return Row{Fields: fields, sortKey: key}, nil
}

// less orders rows ascending by sort key, so the heap minimum is the
// current eviction candidate.
func (r Row) less(o Row) bool {
	for i := range r.sortKey {
		if i >= len(o.sortKey) {
			return false
		}
		if r.sortKey[i] != o.sortKey[i] {
			return r.sortKey[i] < o.sortKey[i]
		}
	}
	return len(r.sortKey) < len(o.sortKey)
}

type rowHeap []Row

func (h rowHeap) Len() int            { return len(h) }
func (h rowHeap) Less(i, j int) bool  { return h[i].less(h[j]) }
func (h rowHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *rowHeap) Push(x interface{}) { *h = append(*h, x.(Row)) }
func (h *rowHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// PostFunc consumes one reduced group: the group key and its top rows
// sorted descending, each row without the key column.
type PostFunc func(key string, rows [][]string) error

// ReduceMaxPerKey streams key-grouped scored records from r and retains
// the top limit rows per group by the composite numeric sort key. Each
// completed group is either handed to post (when non-nil) or emitted to w
// with the key re-attached as the leading column.
//
// A key with no input rows produces no output at all: a listing that saw no
// fresh activity this run keeps its previously stored contents.
func ReduceMaxPerKey(r io.Reader, w io.Writer, limit int, post PostFunc) error {
	if limit <= 0 {
		return errors.AssertionFailedf("topk: invalid limit %d", limit)
	}
	return mrtab.ReduceGroups(r, w, func(key string, it *mrtab.KeyIterator) ([][]string, error) {
		// Accumulate up to limit rows, then arrange them into a min-heap
		// and replace the minimum whenever a larger row arrives.
		h := make(rowHeap, 0, limit)
		heapified := false
		for {
			raw, ok := it.NextRow()
			if !ok {
				break
			}
			row, err := parseRow(raw[1:])
			if err != nil {
				return nil, err
			}
			if len(h) < limit {
				h = append(h, row)
				continue
			}
			if !heapified {
				heap.Init(&h)
				heapified = true
			}
			if h[0].less(row) {
				h[0] = row
				heap.Fix(&h, 0)
			}
		}

		sort.Slice(h, func(i, j int) bool { return h[j].less(h[i]) })
		rows := make([][]string, len(h))
		for i, row := range h {
			rows[i] = row.Fields
		}

		if post != nil {
			return nil, post(key, rows)
		}
		out := make([][]string, len(rows))
		for i, fields := range rows {
			out[i] = append([]string{key}, fields...)
		}
		return out, nil
	})
}
