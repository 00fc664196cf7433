// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package keywords

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/topfeed/topfeed/pkg/util/leaktest"
)

func writeKeywordFile(t *testing.T, path string, entries []string) {
	t.Helper()
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	// Write-then-rename, the way config pushes replace the file.
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, raw, 0644))
	require.NoError(t, os.Rename(tmp, path))
}

// startWatcher runs the watch loop and returns a stop func the caller must
// defer before leaktest's check so the loop goroutine is gone by then.
func startWatcher(t *testing.T, path string) (*Watcher, func()) {
	t.Helper()
	w, err := NewWatcher(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Watch(ctx)
	}()
	return w, func() {
		cancel()
		require.NoError(t, w.Close())
		<-done
	}
}

func TestWatcher(t *testing.T) {
	defer leaktest.AfterTest(t)()

	path := filepath.Join(t.TempDir(), "keywords.json")
	writeKeywordFile(t, path, []string{"k.foo"})

	w, stop := startWatcher(t, path)
	defer stop()
	require.Equal(t, 1, w.Snapshot().Len())
	require.Equal(t, []string{"foo"}, Extract(w.Snapshot(), "foo bar"))

	t.Run("picks up a rewritten file", func(t *testing.T) {
		writeKeywordFile(t, path, []string{"k.foo", "k.bar", "k.baz"})
		require.Eventually(t, func() bool {
			return w.Snapshot().Len() == 3
		}, 10*time.Second, 10*time.Millisecond)
	})

	t.Run("bad content keeps the previous snapshot", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path+".tmp", []byte("{not json"), 0644))
		require.NoError(t, os.Rename(path+".tmp", path))
		// Give the watch loop a beat to see the event; the snapshot must
		// not regress.
		time.Sleep(100 * time.Millisecond)
		require.Equal(t, 3, w.Snapshot().Len())
	})
}

func TestNewWatcherErrors(t *testing.T) {
	defer leaktest.AfterTest(t)()

	t.Run("missing file", func(t *testing.T) {
		_, err := NewWatcher(filepath.Join(t.TempDir(), "missing.json"))
		require.Error(t, err)
	})

	t.Run("malformed file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "keywords.json")
		require.NoError(t, os.WriteFile(path, []byte("nope"), 0644))
		_, err := NewWatcher(path)
		require.Error(t, err)
	})
}
