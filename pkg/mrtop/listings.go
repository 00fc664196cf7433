// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtop

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/mrjoin"
	"github.com/topfeed/topfeed/pkg/mrtab"
	"github.com/topfeed/topfeed/pkg/urlutil"
)

// joinedThing is one record of the join stage's output.
type joinedThing struct {
	id        int64
	ups       int64
	downs     int64
	deleted   bool
	spam      bool
	timestamp float64
	tsRaw     string // preserved verbatim for re-emission
	attrs     []string
}

func parseJoined(kind ThingKind, row []string) (joinedThing, error) {
	specs := supportedKinds[kind]
	want := 7 + len(specs)
	if len(row) != want {
		return joinedThing{}, errors.Newf("mrtop: joined row has %d fields, want %d: %v", len(row), want, row)
	}
	if row[1] != string(kind) {
		return joinedThing{}, errors.Newf("mrtop: row kind %q in a %q run", row[1], kind)
	}
	var t joinedThing
	var err error
	if t.id, err = strconv.ParseInt(row[0], 10, 64); err != nil {
		return joinedThing{}, errors.Wrapf(err, "mrtop: bad thing id %q", row[0])
	}
	if t.ups, err = strconv.ParseInt(row[2], 10, 64); err != nil {
		return joinedThing{}, errors.Wrapf(err, "mrtop: bad ups %q", row[2])
	}
	if t.downs, err = strconv.ParseInt(row[3], 10, 64); err != nil {
		return joinedThing{}, errors.Wrapf(err, "mrtop: bad downs %q", row[3])
	}
	t.deleted = row[4] == "t"
	t.spam = row[5] == "t"
	t.tsRaw = row[6]
	if t.timestamp, err = strconv.ParseFloat(row[6], 64); err != nil {
		return joinedThing{}, errors.Wrapf(err, "mrtop: bad timestamp %q", row[6])
	}
	t.attrs = row[7:]
	return t, nil
}

func (t joinedThing) attr(kind ThingKind, name string) string {
	for i, s := range supportedKinds[kind] {
		if s.name == name {
			return t.attrs[i]
		}
	}
	return ""
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// JoinThings runs the join stage configured for kind: the kind's required
// fields with their zero-value defaults, deleted dropped, spam kept.
func JoinThings(r io.Reader, w io.Writer, diag io.Writer, kind ThingKind) (mrjoin.Counts, error) {
	fields, defaults, err := RequiredFields(kind)
	if err != nil {
		return mrjoin.Counts{}, err
	}
	return mrjoin.Join(r, w, diag, mrjoin.DefaultSpec(fields, defaults))
}

// TimeListings fans each joined record out into one scored tuple per
// qualifying (category, sort, interval) combination:
//
//	listing_key \t score \t timestamp \t fullname
//
// The user category is emitted even for spam (user pages track spam
// scoring); the sr and domain categories are not. A record older than every
// cutoff produces nothing. workers > 1 selects the unordered parallel map;
// either way the output must be externally sorted before reduction.
func TimeListings(
	ctx context.Context,
	r io.Reader,
	w io.Writer,
	kind ThingKind,
	intervals []string,
	now time.Time,
	workers int,
) error {
	if _, ok := supportedKinds[kind]; !ok {
		return errors.Newf("mrtop: don't know how to process %q", kind)
	}
	cutoffs, err := Cutoffs(intervals, now)
	if err != nil {
		return err
	}
	names := sortNames()

	process := func(row []string) ([][]string, error) {
		t, err := parseJoined(kind, row)
		if err != nil {
			return nil, err
		}
		if t.deleted {
			return nil, nil
		}

		fullname := Fullname(kind, t.id)
		scores := make(map[string]string, len(names))
		for _, name := range names {
			scores[name] = formatScore(ListingSorts[name](t.ups, t.downs))
		}

		// Domain permutations are computed once; a bad URL skips domain
		// emission only.
		var domains []string
		if kind == KindLink && !t.spam {
			if u := t.attr(kind, "url"); u != "" {
				if perms, err := urlutil.DomainPermutations(u); err == nil {
					domains = perms
				}
			}
		}

		var out [][]string
		emit := func(category, sort, interval, uid string) {
			out = append(out, []string{
				MakeKey(category, kind, sort, interval, uid),
				scores[sort], t.tsRaw, fullname,
			})
		}

		for _, interval := range intervals {
			if t.timestamp < cutoffs[interval] {
				continue
			}
			for _, sort := range names {
				emit("user", sort, interval, t.attr(kind, "author_id"))
			}
			if t.spam || kind != KindLink {
				continue
			}
			for _, sort := range names {
				emit("sr", sort, interval, t.attr(kind, "sr_id"))
			}
			for _, d := range domains {
				for _, sort := range names {
					emit("domain", sort, interval, d)
				}
			}
		}
		return out, nil
	}

	if workers > 1 {
		return mrtab.MapRowsParallel(ctx, r, w, process, workers)
	}
	return mrtab.MapRows(r, w, process)
}
