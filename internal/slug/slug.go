// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package slug provides URL-friendly slug generation from arbitrary strings.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nonSlugRuns matches every run of characters that cannot appear in a slug.
// Each run collapses to a single hyphen, so "Python 3.12" → "python-3-12".
var nonSlugRuns = regexp.MustCompile(`[^a-z0-9]+`)

// stripMarks decomposes characters (NFKD) and removes combining marks,
// turning "café" into "cafe" before the ASCII filter runs.
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Generate creates a URL-friendly slug from the given string.
// Example: "Hello, World! 2026" → "hello-world-2026"
// Returns the empty string when nothing slug-worthy remains.
func Generate(s string) string {
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	result := strings.ToLower(strings.TrimSpace(s))
	result = nonSlugRuns.ReplaceAllString(result, "-")
	return strings.Trim(result, "-")
}

// Derive generates a slug from name, falling back to the given default
// token when the name yields nothing (whitespace, symbols only).
func Derive(name, fallback string) string {
	if s := Generate(name); s != "" {
		return s
	}
	return fallback
}
