// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtop

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/permacache"
	"github.com/topfeed/topfeed/pkg/query"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

func TestStoreKeys(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	t.Run("merges into the addressed listing", func(t *testing.T) {
		store := permacache.NewMem()
		rows := [][]string{
			{"8", "100.01", "t3_1"},
			{"5", "100.01", "t3_2"},
		}
		require.NoError(t, StoreKeys(ctx, store, 10, "sr/link/top/day/10", rows))

		got, err := query.GetLinks(store, 10, "top", "day", 10).Fetch()
		require.NoError(t, err)
		require.Equal(t, query.Listing{
			{Fullname: "t3_1", Score: 8, Timestamp: 100.01},
			{Fullname: "t3_2", Score: 5, Timestamp: 100.01},
		}, got)
	})

	t.Run("unknown category kind pair is an assertion failure", func(t *testing.T) {
		store := permacache.NewMem()
		err := StoreKeys(ctx, store, 10, "domain/comment/top/day/foo.com", [][]string{{"1", "2", "t1_1"}})
		require.True(t, errors.HasAssertionFailure(err))
	})

	t.Run("malformed rows error", func(t *testing.T) {
		store := permacache.NewMem()
		require.Error(t, StoreKeys(ctx, store, 10, "sr/link/top/day/10", [][]string{{"1", "2"}}))
		require.Error(t, StoreKeys(ctx, store, 10, "sr/link/top/day/10", [][]string{{"x", "2", "t3_1"}}))
		require.Error(t, StoreKeys(ctx, store, 10, "not-a-key", [][]string{{"1", "2", "t3_1"}}))
	})
}

func TestWritePermacache(t *testing.T) {
	defer leaktest.AfterTest(t)()
	ctx := context.Background()

	// Sorted scored stream for two listing keys; the sr listing exceeds the
	// cap and must keep only the top two.
	in := strings.Join([]string{
		"sr/link/top/day/10\t1\t100\tt3_3",
		"sr/link/top/day/10\t5\t100\tt3_1",
		"sr/link/top/day/10\t3\t100\tt3_2",
		"user/link/top/day/2\t5\t100\tt3_1",
	}, "\n") + "\n"

	run := func(t *testing.T, store permacache.Store) {
		t.Helper()
		require.NoError(t, WritePermacache(ctx, strings.NewReader(in), store, 2))
	}

	store := permacache.NewMem()
	run(t, store)

	srList, err := query.GetLinks(store, 10, "top", "day", 2).Fetch()
	require.NoError(t, err)
	require.Equal(t, query.Listing{
		{Fullname: "t3_1", Score: 5, Timestamp: 100},
		{Fullname: "t3_2", Score: 3, Timestamp: 100},
	}, srList)

	userList, err := query.GetSubmitted(store, 2, "top", "day", 2).Fetch()
	require.NoError(t, err)
	require.Equal(t, query.Listing{
		{Fullname: "t3_1", Score: 5, Timestamp: 100},
	}, userList)

	// Re-running the same batch leaves the listings unchanged.
	run(t, store)
	again, err := query.GetLinks(store, 10, "top", "day", 2).Fetch()
	require.NoError(t, err)
	require.Equal(t, srList, again)
}

func TestReduceListings(t *testing.T) {
	defer leaktest.AfterTest(t)()

	in := strings.Join([]string{
		"sr/link/top/day/10\t1\t100\tt3_3",
		"sr/link/top/day/10\t5\t100\tt3_1",
	}, "\n") + "\n"
	var out strings.Builder
	require.NoError(t, ReduceListings(strings.NewReader(in), &out, 1))
	require.Equal(t, "sr/link/top/day/10\t5\t100\tt3_1\n", out.String())
}
