// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package log provides functionality similar to standard log package
// with a global verbosity setting that can be used by multiple packages.
package log

import (
	"flag"
	golog "log"
)

var flagV = flag.Int("vv", 0, "verbosity")

func Logf(v int, msg string, args ...interface{}) {
	if v <= *flagV {
		golog.Printf(msg, args...)
	}
}

func Fatal(err error) {
	golog.Fatal(err)
}

func Fatalf(msg string, args ...interface{}) {
	golog.Fatalf(msg, args...)
}
