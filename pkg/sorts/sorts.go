// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package sorts holds the scoring formulas behind the ranked listings.
// Each formula is monotonic in ups for fixed downs (and in the documented
// direction for downs); the listing consumers depend on that, not on the
// exact constants.
package sorts

import (
	"math"
	"time"
)

// hotEpoch anchors the hot-ranking decay. Scores decay by one order of
// magnitude every 45000 seconds relative to this instant.
const hotEpoch = 1134028003

// EpochSeconds returns t as fractional seconds since the Unix epoch.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Score is the plain top score: net upvotes.
func Score(ups, downs int64) int64 {
	return ups - downs
}

// Controversy rewards near-even vote splits with high total volume. Zero
// unless both sides have votes.
func Controversy(ups, downs int64) float64 {
	if ups <= 0 || downs <= 0 {
		return 0
	}
	magnitude := float64(ups + downs)
	balance := float64(downs) / float64(ups)
	if downs > ups {
		balance = float64(ups) / float64(downs)
	}
	return math.Pow(magnitude, balance)
}

// HotAt computes the time-decayed hot score for an item with the given
// votes submitted at epochSecs.
func HotAt(ups, downs int64, epochSecs float64) float64 {
	s := Score(ups, downs)
	order := math.Log10(math.Max(math.Abs(float64(s)), 1))
	var sign float64
	switch {
	case s > 0:
		sign = 1
	case s < 0:
		sign = -1
	}
	seconds := epochSecs - hotEpoch
	return round7(order + sign*seconds/45000)
}

// Hot is HotAt for a time.Time submission date.
func Hot(ups, downs int64, date time.Time) float64 {
	return HotAt(ups, downs, EpochSeconds(date))
}

// round7 rounds to 7 decimal places, the precision the cached listings
// store.
func round7(x float64) float64 {
	return math.Round(x*1e7) / 1e7
}
