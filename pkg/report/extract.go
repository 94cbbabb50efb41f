// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package report contains functions that process kernel console output:
// detect/extract backtraces, symbolize them and format the result.
package report

import (
	"regexp"
	"strings"
)

// Kind discriminates the two backtrace encodings the kernel emits.
type Kind int

const (
	// Multiline is a "Backtrace:" line followed by one address per line.
	Multiline Kind = iota
	// Inline is "backtrace: [0x... 0x...]" on a single line.
	// The brackets are cosmetic, an unbalanced opening bracket is fine.
	Inline
)

func (k Kind) String() string {
	if k == Multiline {
		return "multiline"
	}
	return "inline"
}

// Backtrace is one occurrence of a backtrace in console output.
type Backtrace struct {
	Kind Kind
	// Start is the byte offset of the marker in the scanned output.
	// Occurrences returned by Extract are ordered by Start.
	Start int
	// Addrs holds the raw address tokens (e.g. "0x12ab", "0vFF") in the
	// order they appear: top-to-bottom for Multiline, left-to-right for
	// Inline. Never empty.
	Addrs []string
}

// The markers are case-sensitive: the kernel's Debug formatter emits
// "Backtrace:" on its own line, the Display formatter emits
// "backtrace: [...]" inline. The marker casing selects the form.
// Address lines of the multiline form may be terminated by end of input
// as well as '\n'.
var backtraceRe = compile(`(?:^Backtrace:[ \t]*\n((?:[ \t]*{{ADDR}}[ \t]*(?:\n|\z))+))|` +
	`(?:backtrace:[ \t]*\[?((?:[ \t]*{{ADDR}})+)\]?)`)

func compile(re string) *regexp.Regexp {
	// The kernel prints addresses with both 0x and 0v prefixes and with
	// hex digits in either case ({:#X} formatting), so the token is
	// case-insensitive everywhere except the marker.
	re = strings.ReplaceAll(re, "{{ADDR}}", `0[xXvV][0-9a-fA-F]+`)
	return regexp.MustCompile("(?m)" + re)
}

// Extract scans console output for backtraces and returns them in the
// order they occur. Matching is a single non-overlapping left-to-right
// pass; each occurrence consumes the maximal run of address lines/tokens
// after its marker. A marker with no addresses after it is not an
// occurrence. Absence of backtraces is not an error, the result is just
// empty.
func Extract(output []byte) []*Backtrace {
	var backtraces []*Backtrace
	for _, match := range backtraceRe.FindAllSubmatchIndex(output, -1) {
		bt := &Backtrace{Kind: Inline, Start: match[0]}
		group := 4
		if match[2] != -1 {
			bt.Kind = Multiline
			group = 2
		}
		bt.Addrs = strings.Fields(string(output[match[group]:match[group+1]]))
		backtraces = append(backtraces, bt)
	}
	return backtraces
}
