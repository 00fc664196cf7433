// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package srpops maintains the per-language subreddit popularity caches: a
// capped, ordered id list per (language, nsfw-state) pair, refreshed by a
// periodic full scan.
package srpops

import (
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/permacache"
)

// DefaultLimit is the stored list length per (language, nsfw-state) pair.
const DefaultLimit = 200

// cacheTTL keeps a dead scanner from serving stale popularity forever.
const cacheTTL = 7 * 24 * time.Hour

// NSFW states a reader can ask for.
const (
	NoOver18    = "no_over18"
	AllowOver18 = "allow_over18"
	OnlyOver18  = "only_over18"
)

func validState(state string) bool {
	return state == NoOver18 || state == AllowOver18 || state == OnlyOver18
}

// CacheKey is the permacache key for one (language, nsfw-state) list.
func CacheKey(lang, state string) (string, error) {
	if !validState(state) {
		return "", errors.AssertionFailedf("srpops: bad nsfw state %q", state)
	}
	return fmt.Sprintf("sr_pops_%s_%s", lang, state), nil
}

// Subreddit is one scanned row.
type Subreddit struct {
	ID       int64
	Name     string
	Lang     string
	Over18   bool
	AuthorID int64
	Downs    int64
}

// Entry is what the cache stores per subreddit: enough to merge and re-rank
// lists on the read side without another lookup.
type Entry struct {
	ID    int64
	Downs int64
}

// Source streams subreddits from the scan. ok=false ends the stream.
type Source interface {
	Next() (sr Subreddit, ok bool, err error)
}

type bucketKey struct {
	lang  string
	state string
}

func chop(entries []Entry, limit int) []Entry {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Downs > entries[j].Downs })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries
}

// CacheLists scans all subreddits and writes the top-limit list for every
// (language, nsfw-state) pair seen. Each subreddit lands in its own
// language and in "all", and in allow_over18 plus exactly one of
// no_over18/only_over18. In-progress buckets are chopped at 2×limit so the
// working set stays bounded during the scan. System subreddits (negative
// author id) are skipped.
func CacheLists(src Source, store permacache.Store, limit int) error {
	if limit <= 0 {
		limit = DefaultLimit
	}
	buckets := make(map[bucketKey][]Entry)

	for {
		sr, ok, err := src.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if sr.AuthorID < 0 {
			continue
		}

		states := []string{AllowOver18, NoOver18}
		if sr.Over18 {
			states[1] = OnlyOver18
		}
		langs := []string{"all", sr.Lang}
		if sr.Lang == "all" || sr.Lang == "" {
			langs = langs[:1]
		}

		for _, lang := range langs {
			for _, state := range states {
				k := bucketKey{lang, state}
				buckets[k] = append(buckets[k], Entry{ID: sr.ID, Downs: sr.Downs})
				if len(buckets[k]) > limit*2 {
					buckets[k] = chop(buckets[k], limit)
				}
			}
		}
	}

	for k, entries := range buckets {
		entries = chop(entries, limit)
		key, err := CacheKey(k.lang, k.state)
		if err != nil {
			return err
		}
		enc, err := permacache.EncodeGob(entries)
		if err != nil {
			return err
		}
		if err := store.Set(key, enc, cacheTTL); err != nil {
			return err
		}
	}
	return nil
}

// PopReddits returns subreddit ids for the requested languages, most
// popular first, deduplicated across languages.
func PopReddits(store permacache.Store, langs []string, over18, over18Only bool) ([]int64, error) {
	state := NoOver18
	if over18 {
		if over18Only {
			state = OnlyOver18
		} else {
			state = AllowOver18
		}
	}

	var all []Entry
	for _, lang := range langs {
		key, err := CacheKey(lang, state)
		if err != nil {
			return nil, err
		}
		raw, ok, err := store.Get(key)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var entries []Entry
		if err := permacache.DecodeGob(raw, &entries); err != nil {
			return nil, errors.Wrapf(err, "srpops: cache %q", key)
		}
		all = append(all, entries...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Downs > all[j].Downs })
	seen := make(map[int64]bool, len(all))
	ids := make([]int64, 0, len(all))
	for _, e := range all {
		if !seen[e.ID] {
			seen[e.ID] = true
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}
