// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package mrtop

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// The dump statements operators feed to psql to produce the pipeline's
// input. Emitted rather than executed: the pipeline never talks to the
// database directly.

const thingQueryTemplate = `
SELECT thing_id
    , 'thing'
    , '%[1]s'
    , ups
    , downs
    , deleted
    , spam
    , extract(epoch from date)
FROM reddit_thing_%[1]s
WHERE not deleted AND thing_id >= %[2]d`

const dataQueryTemplate = `
SELECT thing_id
     , 'data'
     , '%[1]s'
     , key
     , value
FROM reddit_data_%[1]s
WHERE key IN (%[3]s) AND thing_id >= %[2]d`

// EmitThingQuery writes the thing-table dump statement for kind.
func EmitThingQuery(w io.Writer, kind ThingKind, minID int64) error {
	if _, ok := supportedKinds[kind]; !ok {
		return errors.Newf("mrtop: don't know how to process %q", kind)
	}
	_, err := fmt.Fprintf(w, thingQueryTemplate+"\n", kind, minID)
	return err
}

// EmitDataQuery writes the data-table dump statement for kind, restricted
// to the kind's required fields.
func EmitDataQuery(w io.Writer, kind ThingKind, minID int64) error {
	fields, _, err := RequiredFields(kind)
	if err != nil {
		return err
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = "'" + f + "'"
	}
	_, err = fmt.Fprintf(w, dataQueryTemplate+"\n", kind, minID, strings.Join(quoted, ", "))
	return err
}
