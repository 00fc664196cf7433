// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtab

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

func TestMapRowsParallel(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	// Enough input to span several chunks.
	var in strings.Builder
	var want []string
	for i := 0; i < 3*parallelChunkSize+17; i++ {
		fmt.Fprintf(&in, "k%d\t%d\n", i, i)
		want = append(want, fmt.Sprintf("k%d\t%d\tmapped", i, i))
	}

	fn := func(row []string) ([][]string, error) {
		return [][]string{append(append([]string(nil), row...), "mapped")}, nil
	}

	t.Run("single worker matches MapRows", func(t *testing.T) {
		var seq, par strings.Builder
		require.NoError(t, MapRows(strings.NewReader(in.String()), &seq, fn))
		require.NoError(t, MapRowsParallel(ctx, strings.NewReader(in.String()), &par, fn, 1))
		require.Equal(t, seq.String(), par.String())
	})

	t.Run("parallel output is a permutation", func(t *testing.T) {
		var out strings.Builder
		require.NoError(t, MapRowsParallel(ctx, strings.NewReader(in.String()), &out, fn, 4))
		got := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
		sorted := append([]string(nil), want...)
		sort.Strings(sorted)
		sort.Strings(got)
		require.Equal(t, sorted, got)
	})

	t.Run("worker error propagates", func(t *testing.T) {
		var out strings.Builder
		err := MapRowsParallel(ctx, strings.NewReader(in.String()), &out,
			func(row []string) ([][]string, error) {
				if row[0] == "k42" {
					return nil, errTest
				}
				return [][]string{row}, nil
			}, 4)
		require.ErrorIs(t, err, errTest)
	})
}
