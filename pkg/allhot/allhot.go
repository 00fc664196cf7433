// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package allhot maintains the site-wide hot listing: the hottest links
// across all communities, reshuffled so that no single community dominates
// the front of the list.
package allhot

import (
	"sort"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/permacache"
)

// CacheKey is the permacache key for the reshuffled id list.
const CacheKey = "ALL_HOT"

// penaltyConfigKey is the live-config blob holding the target penalty; it is
// hot-reloadable by writing a new value to the store.
const penaltyConfigKey = "live_config/r_all_penalty"

// cacheTTL bounds staleness if the writer job dies; the job reruns well
// inside this.
const cacheTTL = 24 * time.Hour

// Link is one hot-listing candidate.
type Link struct {
	Fullname string
	SrID     int64
	Hot      float64
}

// ResortLinks reshuffles a hotness-descending candidate list, demoting each
// repeated appearance of a community by roughly targetPenalty places. The
// penalty factor is derived from the hotness gap between the first item
// (base) and the item targetPenalty places in (target):
//
//	penalty = target / (target - (target - base) * count)
//
// where count is how many items from the same community precede this one.
// targetPenalty == 0 disables the transform, as does a penalty at or beyond
// the end of the list.
func ResortLinks(links []Link, targetPenalty int) []Link {
	if targetPenalty <= 0 || targetPenalty >= len(links) {
		return links
	}

	base := links[0].Hot
	target := links[targetPenalty].Hot

	srCounts := make(map[int64]int)
	adjusted := make([]float64, len(links))
	for i, link := range links {
		count := srCounts[link.SrID]
		srCounts[link.SrID]++
		penalty := target / (target - (target-base)*float64(count))
		adjusted[i] = link.Hot * penalty
	}

	out := make([]Link, len(links))
	idx := make([]int, len(links))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return adjusted[idx[a]] > adjusted[idx[b]] })
	for i, j := range idx {
		out[i] = links[j]
	}
	return out
}

// TargetPenalty reads the live penalty config; missing or malformed config
// disables the transform.
func TargetPenalty(store permacache.Store) int {
	raw, ok, err := store.Get(penaltyConfigKey)
	if err != nil || !ok {
		return 0
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// SetTargetPenalty publishes a new penalty value.
func SetTargetPenalty(store permacache.Store, n int) error {
	return store.Set(penaltyConfigKey, []byte(strconv.Itoa(n)), 0)
}

// WriteCache reshuffles links with the live penalty and stores the
// resulting fullname list under CacheKey. Returns the stored ids.
func WriteCache(store permacache.Store, links []Link) ([]string, error) {
	resorted := ResortLinks(links, TargetPenalty(store))
	ids := make([]string, len(resorted))
	for i, link := range resorted {
		ids[i] = link.Fullname
	}
	enc, err := permacache.EncodeGob(ids)
	if err != nil {
		return nil, err
	}
	if err := store.Set(CacheKey, enc, cacheTTL); err != nil {
		return nil, err
	}
	return ids, nil
}

// CachedIDs returns the reshuffled fullname list written by the last run,
// or nil if the cache is cold.
func CachedIDs(store permacache.Store) ([]string, error) {
	raw, ok, err := store.Get(CacheKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var ids []string
	if err := permacache.DecodeGob(raw, &ids); err != nil {
		return nil, errors.Wrap(err, "allhot: cache")
	}
	return ids, nil
}
