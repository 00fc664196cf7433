// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package query exposes the persistent ranked listings: capped, ordered
// lists of (fullname, score, timestamp) tuples keyed by listing key and
// stored in the permacache. The batch pipeline merges into them; read paths
// elsewhere fetch them.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/permacache"
)

// DefaultCap is the maximum listing size unless a caller overrides it.
const DefaultCap = 1000

// ItemTuple is one listing entry.
type ItemTuple struct {
	Fullname  string
	Score     float64
	Timestamp float64
}

// Listing is an ordered set of entries, highest (score, timestamp) first,
// unique by fullname.
type Listing []ItemTuple

// moreThan orders tuples by (score, timestamp) descending.
func (t ItemTuple) moreThan(o ItemTuple) bool {
	if t.Score != o.Score {
		return t.Score > o.Score
	}
	return t.Timestamp > o.Timestamp
}

func sortListing(l Listing) {
	sort.SliceStable(l, func(i, j int) bool { return l[i].moreThan(l[j]) })
}

// CachedListing is one persistent listing: a key into the store plus the
// retention cap.
type CachedListing struct {
	Key   string
	Cap   int
	store permacache.Store
}

// NewCachedListing binds a listing key to a store. cap <= 0 selects
// DefaultCap.
func NewCachedListing(store permacache.Store, key string, cap int) *CachedListing {
	if cap <= 0 {
		cap = DefaultCap
	}
	return &CachedListing{Key: key, Cap: cap, store: store}
}

// Fetch loads the listing from the store; a missing key is an empty
// listing.
func (cl *CachedListing) Fetch() (Listing, error) {
	raw, ok, err := cl.store.Get(cl.Key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var l Listing
	if err := permacache.DecodeGob(raw, &l); err != nil {
		return nil, errors.Wrapf(err, "listing %q", cl.Key)
	}
	return l, nil
}

// Replace merges items into the stored listing: each incoming tuple either
// updates the entry with the same fullname or inserts a new one; the result
// is re-sorted descending and truncated to the cap. When lock is set the
// read-modify-write runs under the store's per-key lock — required for the
// all-time listings, which race with live update paths; time-windowed
// listings have a single writer by scheduling construction and skip it.
func (cl *CachedListing) Replace(ctx context.Context, items []ItemTuple, lock bool) error {
	if len(items) == 0 {
		return nil
	}
	return cl.store.Mutate(ctx, cl.Key, func(old []byte) ([]byte, error) {
		var data Listing
		if old != nil {
			if err := permacache.DecodeGob(old, &data); err != nil {
				return nil, errors.Wrapf(err, "listing %q", cl.Key)
			}
		}

		// Short-circuit: a full listing whose floor beats every incoming
		// tuple is unchanged.
		if len(data) >= cl.Cap {
			floor := data[len(data)-1]
			all := true
			for _, it := range items {
				if it.moreThan(floor) {
					all = false
					break
				}
			}
			if all {
				return old, nil
			}
		}

		incoming := make(map[string]bool, len(items))
		for _, it := range items {
			incoming[it.Fullname] = true
		}
		merged := make(Listing, 0, len(data)+len(items))
		for _, t := range data {
			if !incoming[t.Fullname] {
				merged = append(merged, t)
			}
		}
		merged = append(merged, items...)
		sortListing(merged)
		if len(merged) > cl.Cap {
			merged = merged[:cl.Cap]
		}
		return permacache.EncodeGob(merged)
	}, lock)
}

// Delete removes the named entries from the listing.
func (cl *CachedListing) Delete(ctx context.Context, fullnames []string, lock bool) error {
	drop := make(map[string]bool, len(fullnames))
	for _, f := range fullnames {
		drop[f] = true
	}
	return cl.store.Mutate(ctx, cl.Key, func(old []byte) ([]byte, error) {
		var data Listing
		if old != nil {
			if err := permacache.DecodeGob(old, &data); err != nil {
				return nil, errors.Wrapf(err, "listing %q", cl.Key)
			}
		}
		kept := make(Listing, 0, len(data))
		for _, t := range data {
			if !drop[t.Fullname] {
				kept = append(kept, t)
			}
		}
		return permacache.EncodeGob(kept)
	}, lock)
}

// The listing lookups below mirror the consumers of the batch pipeline.
// Keys share the listing-key shape {category}/{kind}/{sort}/{interval}/{id}.

// GetSubmitted is the per-user submitted-links listing.
func GetSubmitted(store permacache.Store, userID int64, sort, interval string, cap int) *CachedListing {
	return NewCachedListing(store, fmt.Sprintf("user/link/%s/%s/%d", sort, interval, userID), cap)
}

// GetComments is the per-user comments listing.
func GetComments(store permacache.Store, userID int64, sort, interval string, cap int) *CachedListing {
	return NewCachedListing(store, fmt.Sprintf("user/comment/%s/%s/%d", sort, interval, userID), cap)
}

// GetLinks is the per-subreddit links listing.
func GetLinks(store permacache.Store, srID int64, sort, interval string, cap int) *CachedListing {
	return NewCachedListing(store, fmt.Sprintf("sr/link/%s/%s/%d", sort, interval, srID), cap)
}

// GetDomainLinks is the per-domain links listing.
func GetDomainLinks(store permacache.Store, domain, sort, interval string, cap int) *CachedListing {
	return NewCachedListing(store, fmt.Sprintf("domain/link/%s/%s/%s", sort, interval, domain), cap)
}
