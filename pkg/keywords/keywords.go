// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package keywords matches link titles against a dynamic keyword set and
// persists the matches onto the source entity. The keyword set is a
// versioned, immutable snapshot; a background watcher publishes fresh
// snapshots when the source file changes, so extraction never reads
// mutable global state.
package keywords

import (
	"regexp"
	"sort"
	"strings"

	"github.com/topfeed/topfeed/pkg/permacache"
)

// MaxPhraseLength caps the word n-grams generated from a title.
const MaxPhraseLength = 4

// MaxMatches caps how many keywords are persisted per entity.
const MaxMatches = 10

var alphanumSplit = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// Phrases generates every contiguous word n-gram of text up to maxLength
// words, splitting on non-alphanumerics.
func Phrases(text string, maxLength int) []string {
	words := alphanumSplit.Split(text, -1)
	filtered := words[:0]
	for _, w := range words {
		if w != "" {
			filtered = append(filtered, w)
		}
	}
	words = filtered

	var phrases []string
	for n := 1; n <= maxLength; n++ {
		for start := 0; start+n <= len(words); start++ {
			phrases = append(phrases, strings.Join(words[start:start+n], " "))
		}
	}
	return phrases
}

// Snapshot is an immutable keyword set. Entries arrive with targeting
// prefixes (`k.foo`, `!k.foo`) which normalize to the bare phrase; entries
// without a recognized prefix are ignored.
type Snapshot struct {
	words map[string]struct{}
}

// NewSnapshot builds a snapshot from raw keyword entries.
func NewSnapshot(raw []string) *Snapshot {
	words := make(map[string]struct{}, len(raw))
	for _, kw := range raw {
		switch {
		case strings.HasPrefix(kw, "k."):
			words[kw[2:]] = struct{}{}
		case strings.HasPrefix(kw, "!k."):
			words[kw[3:]] = struct{}{}
		}
	}
	return &Snapshot{words: words}
}

// Len returns the snapshot's keyword count.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

// Extract returns the title's phrase matches against the snapshot, at most
// MaxMatches, sorted for stable output. A nil snapshot matches nothing.
func Extract(s *Snapshot, title string) []string {
	if s.Len() == 0 {
		return nil
	}
	matches := make(map[string]struct{})
	for _, phrase := range Phrases(strings.ToLower(title), MaxPhraseLength) {
		if _, ok := s.words[phrase]; ok {
			matches[phrase] = struct{}{}
			if len(matches) == MaxMatches {
				break
			}
		}
	}
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for m := range matches {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// targetsKeyPrefix namespaces the persisted per-entity matches.
const targetsKeyPrefix = "keyword_targets/"

// Apply persists the title's matches for the entity named by fullname.
// Spam and deleted entities are the caller's responsibility to skip. No
// matches means nothing is written.
func Apply(store permacache.Store, s *Snapshot, fullname, title string) ([]string, error) {
	matches := Extract(s, title)
	if len(matches) == 0 {
		return nil, nil
	}
	err := store.Set(targetsKeyPrefix+fullname, []byte(strings.Join(matches, ",")), 0)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Targets reads back the persisted matches for fullname.
func Targets(store permacache.Store, fullname string) ([]string, error) {
	raw, ok, err := store.Get(targetsKeyPrefix + fullname)
	if err != nil || !ok {
		return nil, err
	}
	return strings.Split(string(raw), ","), nil
}
