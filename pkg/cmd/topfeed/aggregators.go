// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/topfeed/topfeed/pkg/allhot"
	"github.com/topfeed/topfeed/pkg/keywords"
	"github.com/topfeed/topfeed/pkg/mrtab"
	"github.com/topfeed/topfeed/pkg/permacache"
	"github.com/topfeed/topfeed/pkg/srpops"
)

// readAllHotLinks parses the hot-candidate dump: fullname, sr_id, hotness,
// already sorted hotness-descending by the producing query.
func readAllHotLinks(r io.Reader) ([]allhot.Link, error) {
	var links []allhot.Link
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64<<10), 1<<20)
	for s.Scan() {
		row := mrtab.Fields(s.Text())
		if len(row) != 3 {
			return nil, errors.Newf("all-hot row has %d fields, want 3: %v", len(row), row)
		}
		srID, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad sr id %q", row[1])
		}
		hot, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bad hotness %q", row[2])
		}
		links = append(links, allhot.Link{Fullname: row[0], SrID: srID, Hot: hot})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return links, nil
}

func makeAllHotCommand() *cobra.Command {
	var storePath string
	var setPenalty int
	command := &cobra.Command{
		Use:   "all-hot",
		Short: "Rewrite the site-wide hot cache with the diversity reshuffle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := permacache.OpenPebble(storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if setPenalty >= 0 {
				return allhot.SetTargetPenalty(store, setPenalty)
			}

			links, err := readAllHotLinks(os.Stdin)
			if err != nil {
				return err
			}
			ids, err := allhot.WriteCache(store, links)
			if err != nil {
				return err
			}
			log.Printf("all-hot: cached %d links", len(ids))
			return nil
		},
	}
	command.Flags().StringVar(&storePath, "store", "", "listing store directory")
	command.Flags().IntVar(&setPenalty, "set-penalty", -1,
		"update the live diversity penalty instead of rewriting the cache")
	_ = command.MarkFlagRequired("store")
	return command
}

// tsvSubredditSource reads the subreddit scan dump:
// id, name, lang, over18 (t/f), author_id, downs.
type tsvSubredditSource struct {
	s *bufio.Scanner
}

func (src *tsvSubredditSource) Next() (srpops.Subreddit, bool, error) {
	if !src.s.Scan() {
		return srpops.Subreddit{}, false, src.s.Err()
	}
	row := mrtab.Fields(src.s.Text())
	if len(row) != 6 {
		return srpops.Subreddit{}, false, errors.Newf("sr-pops row has %d fields, want 6: %v", len(row), row)
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return srpops.Subreddit{}, false, errors.Wrapf(err, "bad sr id %q", row[0])
	}
	authorID, err := strconv.ParseInt(row[4], 10, 64)
	if err != nil {
		return srpops.Subreddit{}, false, errors.Wrapf(err, "bad author id %q", row[4])
	}
	downs, err := strconv.ParseInt(row[5], 10, 64)
	if err != nil {
		return srpops.Subreddit{}, false, errors.Wrapf(err, "bad downs %q", row[5])
	}
	return srpops.Subreddit{
		ID:       id,
		Name:     row[1],
		Lang:     row[2],
		Over18:   row[3] == "t",
		AuthorID: authorID,
		Downs:    downs,
	}, true, nil
}

func makeSrPopsCommand() *cobra.Command {
	var storePath string
	var limit int
	command := &cobra.Command{
		Use:   "sr-pops",
		Short: "Rebuild the per-language subreddit popularity caches from a full scan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := permacache.OpenPebble(storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			s := bufio.NewScanner(os.Stdin)
			s.Buffer(make([]byte, 64<<10), 1<<20)
			return srpops.CacheLists(&tsvSubredditSource{s: s}, store, limit)
		},
	}
	command.Flags().StringVar(&storePath, "store", "", "listing store directory")
	command.Flags().IntVar(&limit, "limit", srpops.DefaultLimit, "stored list length per language")
	_ = command.MarkFlagRequired("store")
	return command
}

func makeKeywordsCommand() *cobra.Command {
	var storePath string
	var keywordsFile string
	command := &cobra.Command{
		Use:   "keywords",
		Short: "Match titles against the live keyword set and persist the matches",
		Long: `Reads "fullname \t title" records on stdin, matches each title against
the keyword file (reloaded live while the command runs), and persists the
matches keyed by fullname.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := permacache.OpenPebble(storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			watcher, err := keywords.NewWatcher(keywordsFile)
			if err != nil {
				return err
			}
			defer watcher.Close()
			go func() {
				_ = watcher.Watch(cmd.Context())
			}()

			s := bufio.NewScanner(os.Stdin)
			s.Buffer(make([]byte, 64<<10), 1<<20)
			for s.Scan() {
				row := mrtab.Fields(s.Text())
				if len(row) != 2 {
					return errors.Newf("keywords row has %d fields, want 2: %v", len(row), row)
				}
				matches, err := keywords.Apply(store, watcher.Snapshot(), row[0], row[1])
				if err != nil {
					return err
				}
				if len(matches) > 0 {
					fmt.Fprintf(os.Stderr, "%s: %d keywords\n", row[0], len(matches))
				}
			}
			return s.Err()
		},
	}
	command.Flags().StringVar(&storePath, "store", "", "listing store directory")
	command.Flags().StringVar(&keywordsFile, "keywords-file", "", "JSON keyword list to watch")
	_ = command.MarkFlagRequired("store")
	_ = command.MarkFlagRequired("keywords-file")
	return command
}
