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
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// Watcher keeps the live keyword snapshot in sync with a JSON file (an
// array of prefixed keyword strings). Consumers call Snapshot for the
// current set; the watch loop atomically swaps in a new snapshot whenever
// the file is rewritten, so a consumer never observes a half-loaded set.
type Watcher struct {
	path    string
	current atomic.Pointer[Snapshot]
	fsw     *fsnotify.Watcher
}

// NewWatcher loads the initial snapshot from path and prepares (but does
// not start) the watch loop.
func NewWatcher(path string) (*Watcher, error) {
	w := &Watcher{path: path}
	if err := w.reload(); err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "keywords: creating watcher")
	}
	// Watch the directory: editors and config pushes typically replace the
	// file by rename, which drops a watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, errors.Wrapf(err, "keywords: watching %s", filepath.Dir(path))
	}
	w.fsw = fsw
	return w, nil
}

// Snapshot returns the current keyword set.
func (w *Watcher) Snapshot() *Snapshot {
	return w.current.Load()
}

func (w *Watcher) reload() error {
	raw, err := os.ReadFile(w.path)
	if err != nil {
		return errors.Wrapf(err, "keywords: reading %s", w.path)
	}
	var entries []string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return errors.Wrapf(err, "keywords: parsing %s", w.path)
	}
	w.current.Store(NewSnapshot(entries))
	return nil
}

// Watch runs the reload loop until ctx is done. A reload failure (partial
// write mid-replace, transient parse error) keeps the previous snapshot;
// the next event retries.
func (w *Watcher) Watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if ev.Name != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			_ = w.reload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			return errors.Wrap(err, "keywords: watch")
		}
	}
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
