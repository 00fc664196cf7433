// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package permacache

import (
	"context"
	"time"

	"github.com/topfeed/topfeed/pkg/util/syncutil"
	"github.com/topfeed/topfeed/pkg/util/timeutil"
)

// Mem is an in-process Store for tests. The single mutex doubles as the
// per-key lock; lock requests are honored trivially.
type Mem struct {
	mu      syncutil.Mutex
	entries map[string]memEntry

	// NowFn can be overridden to exercise TTL expiry.
	NowFn func() time.Time
}

type memEntry struct {
	val     []byte
	expires time.Time
}

var _ Store = (*Mem)(nil)

// NewMem returns an empty in-memory store.
func NewMem() *Mem {
	return &Mem{entries: map[string]memEntry{}, NowFn: timeutil.Now}
}

func (m *Mem) getLocked(key string) ([]byte, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && m.NowFn().After(e.expires) {
		return nil, false
	}
	return e.val, true
}

// Get implements Store.
func (m *Mem) Get(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.getLocked(key)
	return val, ok, nil
}

// Set implements Store.
func (m *Mem) Set(key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.expires = m.NowFn().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

// Mutate implements Store.
func (m *Mem) Mutate(
	_ context.Context, key string, fn func(old []byte) ([]byte, error), _ bool,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, _ := m.getLocked(key)
	val, err := fn(old)
	if err != nil {
		return err
	}
	m.entries[key] = memEntry{val: val}
	return nil
}

// Delete implements Store.
func (m *Mem) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// Close implements Store.
func (m *Mem) Close() error {
	return nil
}
