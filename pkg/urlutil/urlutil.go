// Copyright 2024 The Topfeed Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the /LICENSE file.

// Package urlutil extracts the domain permutations of a submitted URL for
// the per-domain listings.
package urlutil

import (
	"net"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// DomainPermutations parses rawURL and returns the host plus every shorter
// dot-suffix with at least two labels, longest first; a host without a www
// prefix also yields its www variant, so foo.com and www.foo.com always
// feed the same pair of listings from either spelling.
//
// IP hosts return the single address. A parse failure or an empty or
// single-label host returns an error; callers skip domain emission for the
// record (and only domain emission) in that case.
func DomainPermutations(rawURL string) ([]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "urlutil: parsing %q", rawURL)
	}
	if u.Host == "" && !strings.Contains(rawURL, "//") {
		// Schemeless dumps are common in old data; retry as a host-relative
		// URL.
		u, err = url.Parse("http://" + rawURL)
		if err != nil {
			return nil, errors.Wrapf(err, "urlutil: parsing %q", rawURL)
		}
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, errors.Newf("urlutil: no host in %q", rawURL)
	}
	if ip := net.ParseIP(host); ip != nil {
		return []string{host}, nil
	}
	parts := strings.Split(host, ".")
	if len(parts) < 2 {
		return nil, errors.Newf("urlutil: unqualified host %q", host)
	}
	for _, p := range parts {
		if p == "" {
			return nil, errors.Newf("urlutil: malformed host %q", host)
		}
	}
	perms := make([]string, 0, len(parts))
	for i := 0; i+2 <= len(parts); i++ {
		perms = append(perms, strings.Join(parts[i:], "."))
	}
	if !strings.HasPrefix(host, "www.") {
		perms = append(perms, "www."+host)
	}
	return perms, nil
}
