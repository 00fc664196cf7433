// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// topfeed is the offline listing pipeline. Each subcommand is one pipeline
// stage reading records on stdin and writing records on stdout, so a full
// run composes with an external sort exactly like any other map-reduce:
//
//	psql -f <(topfeed emit-queries link --table=thing) ... |
//	    topfeed join link |
//	    topfeed time-listings link |
//	    sort |
//	    topfeed write-permacache --store=/var/lib/topfeed
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := makeTopfeedCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		log.Printf("ERROR: %+v", err)
		os.Exit(1)
	}
}

func makeTopfeedCommand() *cobra.Command {
	command := &cobra.Command{
		Use:           "topfeed [command] (flags)",
		Short:         "topfeed computes ranked, time-windowed listings from thing table dumps.",
		Version:       "v0.1",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Accept underscored spellings of the flag names; cron configs copied
	// from the old deployment use them.
	command.SetGlobalNormalizationFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	command.AddCommand(makeJoinCommand())
	command.AddCommand(makeTimeListingsCommand())
	command.AddCommand(makeReduceCommand())
	command.AddCommand(makeWritePermacacheCommand())
	command.AddCommand(makeEmitQueriesCommand())
	command.AddCommand(makeAllHotCommand())
	command.AddCommand(makeSrPopsCommand())
	command.AddCommand(makeKeywordsCommand())
	command.AddCommand(makeScheduleCommand())

	return command
}
