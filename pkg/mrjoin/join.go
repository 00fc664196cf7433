// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package mrjoin merges a combined thing/data table dump into fully
// attributed records. The input stream carries two record kinds keyed by
// thing id:
//
//	id \t thing \t <kind> \t ups \t downs \t deleted \t spam \t timestamp
//	id \t data \t <kind> \t <field> \t <value>
//
// A key group joins into one output record only if the thing row is present,
// the deleted/spam policy admits it, and every required field has a value
// (from a data row or a declared default). Anything else is counted and
// dropped; completeness is all-or-nothing because downstream stages assume
// every field is populated.
package mrjoin

import (
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/topfeed/topfeed/pkg/mrtab"
)

// Record-kind discriminators in column 1 of the input.
const (
	recordThing = "thing"
	recordData  = "data"
)

// Column counts for the two input record shapes.
const (
	thingArity = 8
	dataArity  = 5
)

// Spec declares what a join run must produce.
type Spec struct {
	// Fields are the required data-table field names, in output column
	// order. A group missing any of them (with no default) is dropped.
	Fields []string
	// Defaults seeds the attribute map before data rows are applied; data
	// values override defaults.
	Defaults map[string]string
	// AllowDeleted admits records whose thing row is flagged deleted.
	AllowDeleted bool
	// AllowSpam admits records whose thing row is flagged spam.
	AllowSpam bool
}

// Counts reports the outcome of a join run.
type Counts struct {
	Processed int
	Skipped   int
}

type thingRow struct {
	kind      string
	ups       string
	downs     string
	deleted   bool
	spam      bool
	timestamp string
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "t":
		return true, nil
	case "f":
		return false, nil
	}
	return false, errors.Newf("mrjoin: bad boolean flag %q", s)
}

func parseThing(row []string) (thingRow, error) {
	if len(row) != thingArity {
		return thingRow{}, errors.Newf("mrjoin: thing row has %d fields, want %d: %v", len(row), thingArity, row)
	}
	if _, err := strconv.ParseInt(row[3], 10, 64); err != nil {
		return thingRow{}, errors.Wrapf(err, "mrjoin: bad ups %q", row[3])
	}
	if _, err := strconv.ParseInt(row[4], 10, 64); err != nil {
		return thingRow{}, errors.Wrapf(err, "mrjoin: bad downs %q", row[4])
	}
	deleted, err := parseFlag(row[5])
	if err != nil {
		return thingRow{}, err
	}
	spam, err := parseFlag(row[6])
	if err != nil {
		return thingRow{}, err
	}
	if _, err := strconv.ParseFloat(row[7], 64); err != nil {
		return thingRow{}, errors.Wrapf(err, "mrjoin: bad timestamp %q", row[7])
	}
	return thingRow{
		kind:      row[2],
		ups:       row[3],
		downs:     row[4],
		deleted:   deleted,
		spam:      spam,
		timestamp: row[7],
	}, nil
}

// DefaultSpec returns a Spec with the standard policy: deleted records are
// dropped, spam records are kept (user-level listings score spam too).
func DefaultSpec(fields []string, defaults map[string]string) Spec {
	return Spec{Fields: fields, Defaults: defaults, AllowSpam: true}
}

// Join reduces the combined dump on r into joined records on w. Records
// that fail the completeness or policy checks are silently skipped and
// counted. The processed/skipped totals go to diag at end of stream so they
// never pollute the record output.
//
// Output shape:
//
//	id \t kind \t ups \t downs \t deleted \t spam \t timestamp \t f1 ... fn
//
// with deleted/spam rendered as t/f and fields in Spec order.
func Join(r io.Reader, w io.Writer, diag io.Writer, spec Spec) (Counts, error) {
	var counts Counts
	err := mrtab.ReduceGroups(r, w, func(id string, it *mrtab.KeyIterator) ([][]string, error) {
		var thing *thingRow
		data := make(map[string]string, len(spec.Fields))
		for k, v := range spec.Defaults {
			data[k] = v
		}
		for {
			row, ok := it.NextRow()
			if !ok {
				break
			}
			if len(row) < 2 {
				return nil, errors.Newf("mrjoin: truncated record: %v", row)
			}
			switch row[1] {
			case recordThing:
				t, err := parseThing(row)
				if err != nil {
					return nil, err
				}
				thing = &t
			case recordData:
				if len(row) != dataArity {
					return nil, errors.Newf("mrjoin: data row has %d fields, want %d: %v", len(row), dataArity, row)
				}
				if fieldRequested(spec.Fields, row[3]) {
					data[row[3]] = row[4]
				}
			default:
				return nil, errors.Newf("mrjoin: unknown record kind %q", row[1])
			}
		}

		if thing == nil ||
			(thing.deleted && !spec.AllowDeleted) ||
			(thing.spam && !spec.AllowSpam) ||
			!complete(spec.Fields, data) {
			counts.Skipped++
			return nil, nil
		}

		counts.Processed++
		out := []string{
			id, thing.kind, thing.ups, thing.downs,
			flag(thing.deleted), flag(thing.spam), thing.timestamp,
		}
		for _, f := range spec.Fields {
			out = append(out, data[f])
		}
		return [][]string{out}, nil
	})
	if err != nil {
		return counts, err
	}
	fmt.Fprintf(diag, "%d items processed, %d skipped\n", counts.Processed, counts.Skipped)
	return counts, nil
}

func fieldRequested(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

func complete(fields []string, data map[string]string) bool {
	for _, f := range fields {
		if _, ok := data[f]; !ok {
			return false
		}
	}
	return true
}

func flag(b bool) string {
	if b {
		return "t"
	}
	return "f"
}
