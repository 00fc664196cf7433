// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package timeutil

import "time"

// Now returns the current UTC time.
//
// All pipeline cutoff math is done in UTC; the input dumps carry epoch
// seconds, so local time must never leak into a run.
func Now() time.Time {
	return time.Now().UTC()
}

// Since returns the time elapsed since t.
func Since(t time.Time) time.Duration {
	return Now().Sub(t)
}

// Unix wraps time.Unix but returns the result in UTC.
func Unix(sec, nsec int64) time.Time {
	return time.Unix(sec, nsec).UTC()
}

// FromEpochSeconds converts fractional epoch seconds (the timestamp format
// of the thing table dumps) to a time.Time in UTC.
func FromEpochSeconds(secs float64) time.Time {
	sec := int64(secs)
	nsec := int64((secs - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
