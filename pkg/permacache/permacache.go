// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package permacache is the long-lived keyed blob store backing the ranked
// listings and aggregate caches. The production implementation sits on a
// local pebble store with snappy-compressed values and optional per-entry
// TTLs; an in-memory implementation backs tests.
//
// Mutations are read-modify-write. For keys that can race with concurrent
// writers (the all-time listings), Mutate takes a per-key lock that is held
// across the read and the write and released on every exit path.
package permacache

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrStoreUnavailable wraps backend failures that the job-level caller may
// retry by re-running the batch from the same input.
var ErrStoreUnavailable = errors.New("permacache: store unavailable")

// Store is the keyed blob store consumed by the pipeline's merge stage and
// the specialized aggregators.
type Store interface {
	// Get returns the value for key, or ok=false on a miss (including an
	// expired entry).
	Get(key string) (val []byte, ok bool, err error)
	// Set writes the value for key. ttl == 0 means the entry does not
	// expire.
	Set(key string, val []byte, ttl time.Duration) error
	// Mutate atomically replaces the value for key with fn(old); old is nil
	// on a miss. When lock is set the read-modify-write runs under a
	// per-key lock shared with any concurrent process using the same store.
	Mutate(ctx context.Context, key string, fn func(old []byte) ([]byte, error), lock bool) error
	// Delete removes key.
	Delete(key string) error
	Close() error
}

// expiryHeaderLen prefixes every stored value: big-endian unix nanos after
// which the entry is dead, zero for no expiry.
const expiryHeaderLen = 8

func encodeExpiry(now time.Time, ttl time.Duration) []byte {
	var hdr [expiryHeaderLen]byte
	if ttl > 0 {
		binary.BigEndian.PutUint64(hdr[:], uint64(now.Add(ttl).UnixNano()))
	}
	return hdr[:]
}

func expired(hdr []byte, now time.Time) bool {
	deadline := binary.BigEndian.Uint64(hdr)
	return deadline != 0 && now.UnixNano() > int64(deadline)
}

// EncodeGob gob-encodes v for storage.
func EncodeGob(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, errors.Wrap(err, "permacache: encoding value")
	}
	return buf.Bytes(), nil
}

// DecodeGob decodes a stored gob value into out.
func DecodeGob(b []byte, out interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(out); err != nil {
		return errors.Wrap(err, "permacache: decoding value")
	}
	return nil
}
