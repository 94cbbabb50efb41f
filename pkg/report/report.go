// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/osdev-tools/backtrace/pkg/symbolizer"
)

// Symbolize extracts all backtraces from console output and resolves
// each of them against bin, one resolver call per backtrace, strictly in
// the order they occur. The first resolver failure aborts the whole run,
// there is no partial result.
func Symbolize(output []byte, bin string, symb symbolizer.Symbolizer) ([]string, error) {
	var resolved []string
	for _, bt := range Extract(output) {
		text, err := symb.Symbolize(bin, bt.Addrs)
		if err != nil {
			return nil, fmt.Errorf("failed to symbolize %v backtrace at offset %v: %w",
				bt.Kind, bt.Start, err)
		}
		resolved = append(resolved, text)
	}
	return resolved, nil
}

// Write emits the final report: a summary line, then every resolved
// block behind a separator and a 1-based "Backtrace #N" label. Nothing
// at all is printed when no backtraces were found.
func Write(w io.Writer, resolved []string) {
	if len(resolved) == 0 {
		return
	}
	suffix := "backtrace"
	if len(resolved) > 1 {
		suffix = "backtraces, printing them in order they occur in logs"
	}
	fmt.Fprintf(w, "Found %v %v\n", len(resolved), suffix)
	for i, text := range resolved {
		fmt.Fprintf(w, "%v\n", strings.Repeat("=", 80))
		fmt.Fprintf(w, "Backtrace #%v\n", i+1)
		fmt.Fprintf(w, "%v\n", text)
	}
}
