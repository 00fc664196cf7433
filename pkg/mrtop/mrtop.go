// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package mrtop drives the offline top/controversial listing pipeline: it
// joins thing/data dumps, fans each joined record out into scored tuples
// per (category, sort, interval, grouping id), and merges the reduced
// results into the persistent listings.
//
// A full run composes stages over sorted streams:
//
//	dump | topfeed join link | topfeed time-listings link |
//	    sort | topfeed write-permacache
package mrtop

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/sorts"
)

// ThingKind is one of the closed set of votable entity kinds the pipeline
// understands.
type ThingKind string

// Supported kinds.
const (
	KindLink    ThingKind = "link"
	KindComment ThingKind = "comment"
)

// fieldType drives the default value for a required field.
type fieldType int

const (
	fieldInt fieldType = iota
	fieldStr
)

type fieldSpec struct {
	name string
	typ  fieldType
}

// supportedKinds declares, per kind, the data-table fields a joined record
// must carry, in output column order. Replaces the attribute probing the
// ORM used to do: an unknown kind is a configuration error, not a guess.
var supportedKinds = map[ThingKind][]fieldSpec{
	KindLink: {
		{"author_id", fieldInt},
		{"sr_id", fieldInt},
		{"url", fieldStr},
	},
	KindComment: {
		{"author_id", fieldInt},
		{"sr_id", fieldInt},
	},
}

// fullnamePrefixes maps a kind to its stable external identifier prefix.
var fullnamePrefixes = map[ThingKind]string{
	KindLink:    "t3",
	KindComment: "t1",
}

// ParseKind validates a kind name from the command line.
func ParseKind(s string) (ThingKind, error) {
	k := ThingKind(s)
	if _, ok := supportedKinds[k]; !ok {
		return "", errors.Newf("mrtop: don't know how to process %q", s)
	}
	return k, nil
}

// RequiredFields returns the kind's required field names and their default
// values (0 for ints, empty string otherwise).
func RequiredFields(kind ThingKind) ([]string, map[string]string, error) {
	specs, ok := supportedKinds[kind]
	if !ok {
		return nil, nil, errors.Newf("mrtop: don't know how to process %q", kind)
	}
	fields := make([]string, len(specs))
	defaults := make(map[string]string, len(specs))
	for i, s := range specs {
		fields[i] = s.name
		if s.typ == fieldInt {
			defaults[s.name] = "0"
		} else {
			defaults[s.name] = ""
		}
	}
	return fields, defaults, nil
}

// Fullname renders the stable external identifier for a thing.
func Fullname(kind ThingKind, id int64) string {
	return fullnamePrefixes[kind] + "_" + strconv.FormatInt(id, 10)
}

// SortFunc scores a record for one listing sort.
type SortFunc func(ups, downs int64) float64

// ListingSorts are the sorts every listing is maintained under. The
// concrete formulas are policy (see pkg/sorts); the engine only requires
// monotonicity.
var ListingSorts = map[string]SortFunc{
	"top": func(ups, downs int64) float64 {
		return float64(sorts.Score(ups, downs))
	},
	"controversial": sorts.Controversy,
}

// sortNames returns the listing sorts in deterministic order.
func sortNames() []string {
	names := make([]string, 0, len(ListingSorts))
	for name := range ListingSorts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Intervals is the full recency window set.
var Intervals = []string{"hour", "day", "week", "month", "year", "all"}

// Cutoffs maps each named interval to its minimum-timestamp cutoff in epoch
// seconds, fixed relative to now for the duration of a run. "all" has no
// cutoff.
func Cutoffs(intervals []string, now time.Time) (map[string]float64, error) {
	cutoffs := make(map[string]float64, len(intervals))
	for _, interval := range intervals {
		var t time.Time
		switch interval {
		case "all":
			cutoffs[interval] = 0
			continue
		case "hour":
			t = now.Add(-time.Hour)
		case "day":
			t = now.AddDate(0, 0, -1)
		case "week":
			t = now.AddDate(0, 0, -7)
		case "month":
			t = now.AddDate(0, -1, 0)
		case "year":
			t = now.AddDate(-1, 0, 0)
		default:
			return nil, errors.Newf("mrtop: unknown interval %q", interval)
		}
		cutoffs[interval] = sorts.EpochSeconds(t)
	}
	return cutoffs, nil
}

// MakeKey builds a listing key: {category}/{kind}/{sort}/{interval}/{uid}.
func MakeKey(category string, kind ThingKind, sort, interval, uid string) string {
	return strings.Join([]string{category, string(kind), sort, interval, uid}, "/")
}

// SplitKey splits a listing key into its five parts.
func SplitKey(key string) (category string, kind ThingKind, sort, interval, uid string, _ error) {
	parts := strings.Split(key, "/")
	if len(parts) != 5 {
		return "", "", "", "", "", errors.Newf("mrtop: malformed listing key %q", key)
	}
	return parts[0], ThingKind(parts[1]), parts[2], parts[3], parts[4], nil
}
