// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtab

import (
	"bufio"
	"io"

	"github.com/cockroachdb/errors"
)

// KeyIterator iterates over the key groups of a record stream. The input
// must already be clustered by its leading key column (the reduce-side
// contract: an external sort runs between the map and reduce stages); a
// group is the maximal run of adjacent records sharing a key.
//
// Iteration is two-level so that consumers can stream arbitrarily large
// groups without materializing them:
//
//	it := mrtab.NewKeyIterator(r)
//	for it.NextGroup() {
//		key := it.Key()
//		for {
//			row, ok := it.NextRow()
//			if !ok {
//				break
//			}
//			...
//		}
//	}
//	if err := it.Err(); err != nil { ... }
//
// NextGroup discards any unconsumed rows of the current group.
type KeyIterator struct {
	s       *bufio.Scanner
	key     string
	peeked  []string // next row, already read but not yet returned
	inGroup bool
	done    bool
	err     error

	// assertMonotonic fails the iteration if a key group recurs after a
	// different key was seen. Debug/test runs only; in production the
	// sorted-input precondition is the caller's responsibility.
	assertMonotonic bool
	seenKeys        map[string]bool
}

// NewKeyIterator returns a KeyIterator reading records from r.
func NewKeyIterator(r io.Reader) *KeyIterator {
	return &KeyIterator{s: newScanner(r)}
}

// AssertMonotonic enables the debug check that no key group recurs.
func (it *KeyIterator) AssertMonotonic() *KeyIterator {
	it.assertMonotonic = true
	it.seenKeys = map[string]bool{}
	return it
}

func (it *KeyIterator) read() ([]string, bool) {
	if it.done {
		return nil, false
	}
	if !it.s.Scan() {
		if err := it.s.Err(); err != nil {
			it.err = errors.Wrap(err, "mrtab: reading input")
		}
		it.done = true
		return nil, false
	}
	row := Fields(it.s.Text())
	if row[0] == "" {
		it.err = errors.Newf("mrtab: record with empty key: %q", it.s.Text())
		it.done = true
		return nil, false
	}
	return row, true
}

// NextGroup advances to the next key group, discarding any unread rows of
// the current one. It returns false at end of input or on error.
func (it *KeyIterator) NextGroup() bool {
	if it.err != nil {
		return false
	}
	// Drain the remainder of the current group.
	if it.inGroup {
		for {
			if _, ok := it.NextRow(); !ok {
				break
			}
		}
	}
	if it.err != nil {
		return false
	}
	if it.peeked == nil {
		row, ok := it.read()
		if !ok {
			return false
		}
		it.peeked = row
	}
	it.key = it.peeked[0]
	if it.assertMonotonic {
		if it.seenKeys[it.key] {
			it.err = errors.AssertionFailedf(
				"mrtab: key %q recurred; input not clustered by key", it.key)
			return false
		}
		it.seenKeys[it.key] = true
	}
	it.inGroup = true
	return true
}

// Key returns the key of the current group.
func (it *KeyIterator) Key() string {
	return it.key
}

// NextRow returns the next row of the current group, or ok=false when the
// group is exhausted. The returned row includes the key column.
func (it *KeyIterator) NextRow() ([]string, bool) {
	if !it.inGroup || it.err != nil {
		return nil, false
	}
	if it.peeked == nil {
		row, ok := it.read()
		if !ok {
			it.inGroup = false
			return nil, false
		}
		it.peeked = row
	}
	if it.peeked[0] != it.key {
		// Start of the next group; leave it peeked.
		it.inGroup = false
		return nil, false
	}
	row := it.peeked
	it.peeked = nil
	return row, true
}

// Err returns the first error encountered during iteration.
func (it *KeyIterator) Err() error {
	return it.err
}

// ReduceGroups runs fn once per key group and emits each returned record.
// fn receives the group key and the iterator positioned inside the group;
// it may stream the group's rows via NextRow without materializing them.
func ReduceGroups(r io.Reader, w io.Writer, fn func(key string, it *KeyIterator) ([][]string, error)) error {
	it := NewKeyIterator(r)
	bw := bufio.NewWriter(w)
	for it.NextGroup() {
		out, err := fn(it.Key(), it)
		if err != nil {
			return err
		}
		for _, row := range out {
			if err := Emit(bw, row); err != nil {
				return err
			}
		}
	}
	if err := it.Err(); err != nil {
		return err
	}
	return bw.Flush()
}
