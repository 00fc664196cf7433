// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package permacache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/gofrs/flock"
	"github.com/golang/snappy"
	"github.com/topfeed/topfeed/pkg/util/syncutil"
	"github.com/topfeed/topfeed/pkg/util/timeutil"
)

// lockRetryInterval is how often a blocked Mutate re-attempts the per-key
// file lock while its context is live.
const lockRetryInterval = 10 * time.Millisecond

// Pebble is the production Store: a pebble database plus a directory of
// per-key lock files for cross-process mutual exclusion.
type Pebble struct {
	db      *pebble.DB
	lockDir string

	// mu serializes in-process mutations; the flock files only arbitrate
	// between processes.
	mu syncutil.Mutex

	// nowFn is swapped out by tests to exercise TTL expiry.
	nowFn func() time.Time
}

var _ Store = (*Pebble)(nil)

// OpenPebble opens (creating if needed) a store rooted at dir.
func OpenPebble(dir string) (*Pebble, error) {
	lockDir := filepath.Join(dir, "locks")
	if err := os.MkdirAll(lockDir, 0755); err != nil {
		return nil, errors.Wrap(err, "permacache: creating lock dir")
	}
	db, err := pebble.Open(filepath.Join(dir, "db"), &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(ErrStoreUnavailable, "opening pebble at %s: %v", dir, err)
	}
	return &Pebble{db: db, lockDir: lockDir, nowFn: timeutil.Now}, nil
}

func (p *Pebble) getLocked(key string) ([]byte, bool, error) {
	raw, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(ErrStoreUnavailable, "get %q: %v", key, err)
	}
	defer closer.Close()
	if len(raw) < expiryHeaderLen {
		return nil, false, errors.AssertionFailedf("permacache: corrupt value for %q", key)
	}
	if expired(raw[:expiryHeaderLen], p.nowFn()) {
		return nil, false, nil
	}
	val, err := snappy.Decode(nil, raw[expiryHeaderLen:])
	if err != nil {
		return nil, false, errors.Wrapf(err, "permacache: decompressing %q", key)
	}
	return val, true, nil
}

func (p *Pebble) setLocked(key string, val []byte, ttl time.Duration) error {
	enc := append(encodeExpiry(p.nowFn(), ttl), snappy.Encode(nil, val)...)
	if err := p.db.Set([]byte(key), enc, pebble.Sync); err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "set %q: %v", key, err)
	}
	return nil
}

// Get implements Store.
func (p *Pebble) Get(key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getLocked(key)
}

// Set implements Store.
func (p *Pebble) Set(key string, val []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setLocked(key, val, ttl)
}

// Mutate implements Store.
func (p *Pebble) Mutate(
	ctx context.Context, key string, fn func(old []byte) ([]byte, error), lock bool,
) error {
	if lock {
		fl := flock.New(p.lockPath(key))
		locked, err := fl.TryLockContext(ctx, lockRetryInterval)
		if err != nil {
			return errors.Wrapf(ErrStoreUnavailable, "locking %q: %v", key, err)
		}
		if !locked {
			return errors.Wrapf(ErrStoreUnavailable, "lock on %q not acquired", key)
		}
		defer func() {
			_ = fl.Unlock()
		}()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	old, _, err := p.getLocked(key)
	if err != nil {
		return err
	}
	val, err := fn(old)
	if err != nil {
		return err
	}
	return p.setLocked(key, val, 0)
}

// Delete implements Store.
func (p *Pebble) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.Wrapf(ErrStoreUnavailable, "delete %q: %v", key, err)
	}
	return nil
}

// Close implements Store.
func (p *Pebble) Close() error {
	return p.db.Close()
}

// lockPath maps a cache key to a stable lock file name. Keys contain
// slashes, so hash rather than escape.
func (p *Pebble) lockPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(p.lockDir, hex.EncodeToString(sum[:8])+".lock")
}
