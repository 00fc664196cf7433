// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package topk

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

func reduceToString(t *testing.T, in string, limit int) string {
	t.Helper()
	var out strings.Builder
	require.NoError(t, ReduceMaxPerKey(strings.NewReader(in), &out, limit, nil))
	return out.String()
}

func TestReduceMaxPerKey(t *testing.T) {
	defer leaktest.AfterTest(t)()

	t.Run("keeps top rows descending", func(t *testing.T) {
		in := strings.Join([]string{
			"k\t1\t100\ta",
			"k\t5\t100\tb",
			"k\t3\t100\tc",
			"k\t4\t100\td",
		}, "\n") + "\n"
		require.Equal(t,
			"k\t5\t100\tb\nk\t4\t100\td\n",
			reduceToString(t, in, 2))
	})

	t.Run("ties broken by later sort columns", func(t *testing.T) {
		in := strings.Join([]string{
			"k\t5\t100\ta",
			"k\t5\t200\tb",
			"k\t5\t50\tc",
		}, "\n") + "\n"
		require.Equal(t,
			"k\t5\t200\tb\nk\t5\t100\ta\n",
			reduceToString(t, in, 2))
	})

	t.Run("group smaller than limit passes through sorted", func(t *testing.T) {
		in := "k\t2\t1\ta\nk\t9\t1\tb\n"
		require.Equal(t,
			"k\t9\t1\tb\nk\t2\t1\ta\n",
			reduceToString(t, in, 100))
	})

	t.Run("independent groups", func(t *testing.T) {
		in := strings.Join([]string{
			"a\t1\t0\tx",
			"a\t2\t0\ty",
			"b\t9\t0\tz",
		}, "\n") + "\n"
		require.Equal(t,
			"a\t2\t0\ty\na\t1\t0\tx\nb\t9\t0\tz\n",
			reduceToString(t, in, 2))
	})

	t.Run("empty input emits nothing", func(t *testing.T) {
		require.Empty(t, reduceToString(t, "", 10))
	})

	t.Run("non-numeric sort column errors", func(t *testing.T) {
		var out strings.Builder
		err := ReduceMaxPerKey(strings.NewReader("k\tNaNaN\t0\ta\n"), &out, 10, nil)
		require.Error(t, err)
	})

	t.Run("invalid limit is an assertion failure", func(t *testing.T) {
		var out strings.Builder
		err := ReduceMaxPerKey(strings.NewReader("k\t1\t0\ta\n"), &out, 0, nil)
		require.True(t, errors.HasAssertionFailure(err))
	})
}

func TestReduceMaxPerKeyPost(t *testing.T) {
	defer leaktest.AfterTest(t)()

	in := "k\t1\t0\ta\nk\t3\t0\tb\nm\t7\t0\tc\n"
	got := map[string][][]string{}
	var out strings.Builder
	err := ReduceMaxPerKey(strings.NewReader(in), &out, 10, func(key string, rows [][]string) error {
		got[key] = rows
		return nil
	})
	require.NoError(t, err)
	// post consumes the groups; nothing is written.
	require.Empty(t, out.String())
	require.Equal(t, [][]string{{"3", "0", "b"}, {"1", "0", "a"}}, got["k"])
	require.Equal(t, [][]string{{"7", "0", "c"}}, got["m"])
}

func TestReduceMaxPerKeyLargeGroup(t *testing.T) {
	defer leaktest.AfterTest(t)()

	// A shuffled group well past the heap's limit must still surface the
	// exact top scores.
	const n, limit = 5000, 25
	rng := rand.New(rand.NewSource(42))
	scores := rng.Perm(n)
	var in strings.Builder
	for _, s := range scores {
		fmt.Fprintf(&in, "k\t%d\t0\tt3_%d\n", s, s)
	}

	var out strings.Builder
	require.NoError(t, ReduceMaxPerKey(strings.NewReader(in.String()), &out, limit, nil))
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, limit)
	for i, line := range lines {
		require.Equal(t, fmt.Sprintf("k\t%d\t0\tt3_%d", n-1-i, n-1-i), line)
	}
}
