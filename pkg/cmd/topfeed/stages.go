// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/topfeed/topfeed/pkg/mrtop"
	"github.com/topfeed/topfeed/pkg/permacache"
	"github.com/topfeed/topfeed/pkg/query"
	"github.com/topfeed/topfeed/pkg/util/timeutil"
)

func makeJoinCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "join <kind>",
		Short: "Join a combined thing/data dump into attributed records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := mrtop.ParseKind(args[0])
			if err != nil {
				return err
			}
			_, err = mrtop.JoinThings(os.Stdin, os.Stdout, os.Stderr, kind)
			return err
		},
	}
}

func makeTimeListingsCommand() *cobra.Command {
	var intervals []string
	var workers int
	command := &cobra.Command{
		Use:   "time-listings <kind>",
		Short: "Fan joined records out into scored listing tuples",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := mrtop.ParseKind(args[0])
			if err != nil {
				return err
			}
			return mrtop.TimeListings(
				cmd.Context(), os.Stdin, os.Stdout, kind, intervals, timeutil.Now(), workers)
		},
	}
	command.Flags().StringSliceVar(&intervals, "intervals", mrtop.Intervals,
		"time windows to emit listings for")
	command.Flags().IntVar(&workers, "workers", 1,
		"parallel map workers; >1 produces unordered output")
	return command
}

func makeReduceCommand() *cobra.Command {
	var cap int
	command := &cobra.Command{
		Use:   "reduce",
		Short: "Reduce sorted scored tuples to the top-N per listing key (debugging; write-permacache does this internally)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mrtop.ReduceListings(os.Stdin, os.Stdout, cap)
		},
	}
	command.Flags().IntVar(&cap, "cap", query.DefaultCap, "maximum listing size")
	return command
}

func makeWritePermacacheCommand() *cobra.Command {
	var cap int
	var storePath string
	command := &cobra.Command{
		Use:   "write-permacache",
		Short: "Reduce sorted scored tuples and merge them into the listing store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := permacache.OpenPebble(storePath)
			if err != nil {
				return err
			}
			defer store.Close()
			return mrtop.WritePermacache(cmd.Context(), os.Stdin, store, cap)
		},
	}
	command.Flags().IntVar(&cap, "cap", query.DefaultCap, "maximum listing size")
	command.Flags().StringVar(&storePath, "store", "", "listing store directory")
	_ = command.MarkFlagRequired("store")
	return command
}

func makeEmitQueriesCommand() *cobra.Command {
	var table string
	var minID int64
	command := &cobra.Command{
		Use:   "emit-queries <kind>",
		Short: "Print the SQL dump statement feeding the pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := mrtop.ParseKind(args[0])
			if err != nil {
				return err
			}
			switch table {
			case "thing":
				return mrtop.EmitThingQuery(os.Stdout, kind, minID)
			case "data":
				return mrtop.EmitDataQuery(os.Stdout, kind, minID)
			}
			return errors.Newf("unknown table %q (want thing or data)", table)
		},
	}
	command.Flags().StringVar(&table, "table", "thing", "which dump statement: thing or data")
	command.Flags().Int64Var(&minID, "min-id", 0, "lowest thing id to dump")
	return command
}
