// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtab

import (
	"bufio"
	"context"
	"io"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// parallelChunkSize is the number of input lines handed to a worker at a
// time. Large enough to amortize channel traffic, small enough to keep the
// workers busy near end of input.
const parallelChunkSize = 1000

// MapRowsParallel is MapRows fanned out over a worker pool. fn must be a
// pure, side-effect-free row transform. Output ordering is NOT preserved;
// consumers that need grouping must re-sort before reducing, which the
// map-reduce contract requires of them anyway.
//
// workers <= 1 degrades to the sequential MapRows.
func MapRowsParallel(
	ctx context.Context,
	r io.Reader,
	w io.Writer,
	fn func(row []string) ([][]string, error),
	workers int,
) error {
	if workers <= 1 {
		return MapRows(r, w, fn)
	}
	if workers > runtime.GOMAXPROCS(0) {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	chunks := make(chan []string, workers)
	results := make(chan [][]string, workers)

	// Reader: feed chunks of raw lines to the workers.
	g.Go(func() error {
		defer close(chunks)
		s := newScanner(r)
		chunk := make([]string, 0, parallelChunkSize)
		for s.Scan() {
			chunk = append(chunk, s.Text())
			if len(chunk) == parallelChunkSize {
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return ctx.Err()
				}
				chunk = make([]string, 0, parallelChunkSize)
			}
		}
		if err := s.Err(); err != nil {
			return errors.Wrap(err, "mrtab: reading input")
		}
		if len(chunk) > 0 {
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	// Workers: transform each line of a chunk and forward the output rows.
	var wg errgroup.Group
	for i := 0; i < workers; i++ {
		wg.Go(func() error {
			for chunk := range chunks {
				out := make([][]string, 0, len(chunk))
				for _, line := range chunk {
					rows, err := fn(Fields(line))
					if err != nil {
						return err
					}
					out = append(out, rows...)
				}
				select {
				case results <- out:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return wg.Wait()
	})

	// Writer: single goroutine owns the output stream.
	g.Go(func() error {
		bw := bufio.NewWriter(w)
		for rows := range results {
			for _, row := range rows {
				if err := Emit(bw, row); err != nil {
					return err
				}
			}
		}
		return bw.Flush()
	})

	return g.Wait()
}
