// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrjoin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

func runJoin(t *testing.T, in string, spec Spec) (string, string, Counts) {
	t.Helper()
	var out, diag strings.Builder
	counts, err := Join(strings.NewReader(in), &out, &diag, spec)
	require.NoError(t, err)
	return out.String(), diag.String(), counts
}

func TestJoin(t *testing.T) {
	defer leaktest.AfterTest(t)()

	linkSpec := DefaultSpec(
		[]string{"author_id", "sr_id", "url"},
		map[string]string{"author_id": "0", "sr_id": "0", "url": ""},
	)

	t.Run("joins thing and data rows", func(t *testing.T) {
		in := strings.Join([]string{
			"1\tdata\tlink\tauthor_id\t10",
			"1\tdata\tlink\tsr_id\t12",
			"1\tdata\tlink\turl\thttp://foo.com/x",
			"1\tthing\tlink\t5\t2\tf\tf\t100.01",
		}, "\n") + "\n"
		out, diag, counts := runJoin(t, in, linkSpec)
		require.Equal(t, "1\tlink\t5\t2\tf\tf\t100.01\t10\t12\thttp://foo.com/x\n", out)
		require.Equal(t, "1 items processed, 0 skipped\n", diag)
		require.Equal(t, Counts{Processed: 1}, counts)
	})

	t.Run("defaults fill missing fields", func(t *testing.T) {
		in := "2\tthing\tlink\t1\t0\tf\tf\t50.5\n"
		out, _, counts := runJoin(t, in, linkSpec)
		require.Equal(t, "2\tlink\t1\t0\tf\tf\t50.5\t0\t0\t\n", out)
		require.Equal(t, Counts{Processed: 1}, counts)
	})

	t.Run("missing required field without default drops group", func(t *testing.T) {
		spec := DefaultSpec([]string{"author_id"}, nil)
		in := "3\tthing\tcomment\t1\t0\tf\tf\t50.5\n"
		out, _, counts := runJoin(t, in, spec)
		require.Empty(t, out)
		require.Equal(t, Counts{Skipped: 1}, counts)
	})

	t.Run("group without thing row drops", func(t *testing.T) {
		in := "4\tdata\tlink\tauthor_id\t10\n"
		out, _, counts := runJoin(t, in, linkSpec)
		require.Empty(t, out)
		require.Equal(t, Counts{Skipped: 1}, counts)
	})

	t.Run("deleted dropped spam kept by default", func(t *testing.T) {
		in := strings.Join([]string{
			"5\tthing\tlink\t1\t0\tt\tf\t10",
			"6\tthing\tlink\t1\t0\tf\tt\t10",
		}, "\n") + "\n"
		out, _, counts := runJoin(t, in, linkSpec)
		require.Equal(t, "6\tlink\t1\t0\tf\tt\t10\t0\t0\t\n", out)
		require.Equal(t, Counts{Processed: 1, Skipped: 1}, counts)
	})

	t.Run("spam dropped when disallowed", func(t *testing.T) {
		spec := linkSpec
		spec.AllowSpam = false
		in := "7\tthing\tlink\t1\t0\tf\tt\t10\n"
		out, _, counts := runJoin(t, in, spec)
		require.Empty(t, out)
		require.Equal(t, Counts{Skipped: 1}, counts)
	})

	t.Run("data values override defaults", func(t *testing.T) {
		in := strings.Join([]string{
			"8\tdata\tlink\tauthor_id\t42",
			"8\tthing\tlink\t1\t0\tf\tf\t10",
		}, "\n") + "\n"
		out, _, _ := runJoin(t, in, linkSpec)
		require.Equal(t, "8\tlink\t1\t0\tf\tf\t10\t42\t0\t\n", out)
	})

	t.Run("unrequested data fields ignored", func(t *testing.T) {
		in := strings.Join([]string{
			"9\tdata\tlink\tis_self\tt",
			"9\tthing\tlink\t1\t0\tf\tf\t10",
		}, "\n") + "\n"
		out, _, _ := runJoin(t, in, linkSpec)
		require.Equal(t, "9\tlink\t1\t0\tf\tf\t10\t0\t0\t\n", out)
	})
}

func TestJoinMalformedInput(t *testing.T) {
	defer leaktest.AfterTest(t)()

	spec := DefaultSpec([]string{"author_id"}, map[string]string{"author_id": "0"})

	cases := []struct {
		name string
		in   string
	}{
		{"truncated thing row", "1\tthing\tlink\t1\t0\tf\tf\n"},
		{"bad ups", "1\tthing\tlink\tx\t0\tf\tf\t10\n"},
		{"bad flag", "1\tthing\tlink\t1\t0\tmaybe\tf\t10\n"},
		{"bad timestamp", "1\tthing\tlink\t1\t0\tf\tf\tsoon\n"},
		{"truncated data row", "1\tdata\tlink\tauthor_id\n"},
		{"unknown record kind", "1\tblob\tlink\t1\t0\tf\tf\t10\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out, diag strings.Builder
			_, err := Join(strings.NewReader(tc.in), &out, &diag, spec)
			require.Error(t, err)
		})
	}
}
