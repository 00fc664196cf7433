// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

func TestEmitThingQuery(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var sb strings.Builder
	require.NoError(t, EmitThingQuery(&sb, KindLink, 100))
	got := sb.String()
	require.Contains(t, got, "FROM reddit_thing_link")
	require.Contains(t, got, "thing_id >= 100")
	require.Contains(t, got, "'link'")

	require.Error(t, EmitThingQuery(&sb, ThingKind("subreddit"), 0))
}

func TestEmitDataQuery(t *testing.T) {
	defer leaktest.AfterTest(t)()

	var sb strings.Builder
	require.NoError(t, EmitDataQuery(&sb, KindComment, 0))
	got := sb.String()
	require.Contains(t, got, "FROM reddit_data_comment")
	require.Contains(t, got, "'author_id', 'sr_id'")
	require.NotContains(t, got, "'url'")
}
