// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// backtrace-symbolize reads kernel console output on stdin, extracts
// all backtraces from it (both the multiline "Backtrace:" and the
// inline "backtrace: [...]" encodings) and prints them symbolized
// against the kernel binary given as the single argument.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/osdev-tools/backtrace/pkg/log"
	"github.com/osdev-tools/backtrace/pkg/osutil"
	"github.com/osdev-tools/backtrace/pkg/report"
	"github.com/osdev-tools/backtrace/pkg/symbolizer"
	"github.com/osdev-tools/backtrace/pkg/tool"
)

func main() {
	flag.Parse()
	if len(flag.Args()) != 1 {
		fmt.Fprintf(os.Stderr, "usage: backtrace-symbolize kernel_binary < console.log\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	bin := flag.Args()[0]
	if err := osutil.IsAccessible(bin); err != nil {
		tool.Fail(err)
	}
	output, err := osutil.ReadInput(os.Stdin)
	if err != nil {
		tool.Failf("failed to read console output: %v", err)
	}
	log.Logf(1, "read %v bytes of console output", len(output))
	resolved, err := report.Symbolize(output, bin, &symbolizer.Tool{})
	if err != nil {
		tool.Fail(err)
	}
	log.Logf(1, "symbolized %v backtraces", len(resolved))
	report.Write(os.Stdout, resolved)
}
