// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtop

import (
	"context"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/permacache"
	"github.com/topfeed/topfeed/pkg/query"
	"github.com/topfeed/topfeed/pkg/topk"
)

// lookupListing resolves a (category, kind) pair to its persistent listing.
// The mapping is closed; an unknown combination means the stages disagree
// about the schema and the run must die, not skip.
func lookupListing(
	store permacache.Store, category string, kind ThingKind, sort, interval, uid string, cap int,
) (*query.CachedListing, error) {
	switch category {
	case "user":
		id, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "mrtop: bad user id %q", uid)
		}
		switch kind {
		case KindLink:
			return query.GetSubmitted(store, id, sort, interval, cap), nil
		case KindComment:
			return query.GetComments(store, id, sort, interval, cap), nil
		}
	case "sr":
		if kind == KindLink {
			id, err := strconv.ParseInt(uid, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "mrtop: bad sr id %q", uid)
			}
			return query.GetLinks(store, id, sort, interval, cap), nil
		}
	case "domain":
		if kind == KindLink {
			return query.GetDomainLinks(store, uid, sort, interval, cap), nil
		}
	}
	return nil, errors.AssertionFailedf("mrtop: unknown query type for %q/%q", category, kind)
}

// StoreKeys merges one reduced listing into its persistent counterpart.
// rows are (score, timestamp, fullname) in descending order as produced by
// the reduction stage. Only the all-time listings take the per-key lock:
// each time-windowed listing has exactly one writer per run by construction
// of the job schedule.
func StoreKeys(
	ctx context.Context, store permacache.Store, cap int, key string, rows [][]string,
) error {
	category, kind, sort, interval, uid, err := SplitKey(key)
	if err != nil {
		return err
	}
	cl, err := lookupListing(store, category, kind, sort, interval, uid, cap)
	if err != nil {
		return err
	}

	items := make([]query.ItemTuple, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return errors.Newf("mrtop: reduced row has %d fields, want 3: %v", len(row), row)
		}
		score, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return errors.Wrapf(err, "mrtop: bad score %q", row[0])
		}
		ts, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return errors.Wrapf(err, "mrtop: bad timestamp %q", row[1])
		}
		items[i] = query.ItemTuple{Fullname: row[2], Score: score, Timestamp: ts}
	}

	lock := interval == "all"
	return cl.Replace(ctx, items, lock)
}

// WritePermacache is the terminal stage: reduce the scored stream to the
// top cap entries per listing key and merge each group into the permacache.
func WritePermacache(
	ctx context.Context, r io.Reader, store permacache.Store, cap int,
) error {
	return topk.ReduceMaxPerKey(r, io.Discard, cap, func(key string, rows [][]string) error {
		return StoreKeys(ctx, store, cap, key, rows)
	})
}

// ReduceListings is the debugging reducer: the same reduction as
// WritePermacache but emitted to w instead of the store, handy for
// inspecting a run's final result before committing it.
func ReduceListings(r io.Reader, w io.Writer, cap int) error {
	return topk.ReduceMaxPerKey(r, w, cap, nil)
}
