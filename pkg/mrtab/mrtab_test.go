// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtab

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

var errTest = errors.New("boom")

func TestEmit(t *testing.T) {
	defer leaktest.AfterTest(t)()

	t.Run("joins fields with tabs", func(t *testing.T) {
		var sb strings.Builder
		require.NoError(t, Emit(&sb, []string{"a", "b", "c"}))
		require.Equal(t, "a\tb\tc\n", sb.String())
	})

	t.Run("rejects tabs in fields", func(t *testing.T) {
		var sb strings.Builder
		err := Emit(&sb, []string{"a", "b\tc"})
		require.ErrorIs(t, err, ErrFieldByte)
	})

	t.Run("rejects newlines in fields", func(t *testing.T) {
		var sb strings.Builder
		err := Emit(&sb, []string{"a\nb"})
		require.ErrorIs(t, err, ErrFieldByte)
	})
}

func TestFields(t *testing.T) {
	defer leaktest.AfterTest(t)()

	require.Equal(t, []string{"a", "b", "c"}, Fields("a\tb\tc"))
	// Empty fields survive the round trip.
	require.Equal(t, []string{"a", "", "c"}, Fields("a\t\tc"))
}

func TestMapRows(t *testing.T) {
	defer leaktest.AfterTest(t)()

	t.Run("identity", func(t *testing.T) {
		in := "a\t1\nb\t2\n"
		var out strings.Builder
		err := MapRows(strings.NewReader(in), &out, func(row []string) ([][]string, error) {
			return [][]string{row}, nil
		})
		require.NoError(t, err)
		require.Equal(t, in, out.String())
	})

	t.Run("drop and fan out", func(t *testing.T) {
		in := "a\t1\nb\t2\nc\t3\n"
		var out strings.Builder
		err := MapRows(strings.NewReader(in), &out, func(row []string) ([][]string, error) {
			if row[0] == "b" {
				return nil, nil
			}
			return [][]string{
				{row[0], row[1], "x"},
				{row[0], row[1], "y"},
			}, nil
		})
		require.NoError(t, err)
		require.Equal(t, "a\t1\tx\na\t1\ty\nc\t3\tx\nc\t3\ty\n", out.String())
	})

	t.Run("fn error aborts", func(t *testing.T) {
		var out strings.Builder
		boom := strings.NewReader("a\t1\nb\t2\n")
		err := MapRows(boom, &out, func(row []string) ([][]string, error) {
			if row[0] == "b" {
				return nil, errTest
			}
			return [][]string{row}, nil
		})
		require.ErrorIs(t, err, errTest)
	})
}
