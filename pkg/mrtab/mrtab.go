// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package mrtab implements the tab-separated record protocol spoken between
// the batch pipeline stages. A record is one newline-terminated line of
// tab-joined fields; the first field is the grouping key. Stages compose via
// OS pipes or in-process readers, and every stage makes a single forward
// pass over its input.
//
// The format does not support tabs or newlines inside field values. That is
// a contract of the protocol, not an escaping bug: the upstream table dumps
// are produced with the same restriction.
package mrtab

import (
	"bufio"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
)

// maxLineSize bounds a single input record. Lines are dominated by URLs and
// titles; 1MB is far beyond anything the dumps produce.
const maxLineSize = 1 << 20

// ErrFieldByte is returned when a field to be emitted contains a tab or
// newline byte, which the wire format cannot represent.
var ErrFieldByte = errors.New("mrtab: field contains tab or newline")

// Emit writes one record: tab-joined fields plus a trailing newline.
func Emit(w io.Writer, fields []string) error {
	for _, f := range fields {
		if strings.ContainsAny(f, "\t\n\r") {
			return errors.Wrapf(ErrFieldByte, "field %q", f)
		}
	}
	if _, err := io.WriteString(w, strings.Join(fields, "\t")); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// Fields splits one raw line into its fields.
func Fields(line string) []string {
	return strings.Split(line, "\t")
}

// newScanner wraps r with a line scanner sized for pipeline records.
func newScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64<<10), maxLineSize)
	return s
}

// MapRows applies fn to every input record and emits each returned record.
// fn may return zero output rows to drop a record, or several to fan out.
// Any error from fn aborts the run; this is a batch pipeline and partial
// output is worth less than a loud failure.
func MapRows(r io.Reader, w io.Writer, fn func(row []string) ([][]string, error)) error {
	s := newScanner(r)
	bw := bufio.NewWriter(w)
	for s.Scan() {
		out, err := fn(Fields(s.Text()))
		if err != nil {
			return err
		}
		for _, row := range out {
			if err := Emit(bw, row); err != nil {
				return err
			}
		}
	}
	if err := s.Err(); err != nil {
		return errors.Wrap(err, "mrtab: reading input")
	}
	return bw.Flush()
}
