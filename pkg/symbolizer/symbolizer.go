// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package symbolizer resolves raw backtrace addresses into function
// names and source locations using debug info in the kernel binary.
package symbolizer

import (
	"bytes"
	"strings"

	"github.com/osdev-tools/backtrace/pkg/osutil"
)

// Symbolizer resolves one ordered sequence of raw address tokens
// against a binary. The returned text is opaque to callers and is
// passed through to the final report verbatim.
type Symbolizer interface {
	Symbolize(bin string, addrs []string) (string, error)
}

// DefaultTool is the external symbolizing tool used when none is
// configured explicitly.
const DefaultTool = "llvm-symbolizer"

// Tool symbolizes by running an external llvm-symbolizer-compatible
// tool once per call, feeding it the addresses on stdin one per line
// and returning its stdout unmodified.
type Tool struct {
	// Path of the tool binary, DefaultTool if empty.
	Path string
}

// Symbolize runs the tool against bin. A missing tool, an unreadable
// binary or a non-zero tool exit all surface as errors here and are not
// recoverable for the caller.
func (t *Tool) Symbolize(bin string, addrs []string) (string, error) {
	path := t.Path
	if path == "" {
		path = DefaultTool
	}
	stdout := new(bytes.Buffer)
	cmd := osutil.Command(path, "--exe="+bin)
	cmd.Stdin = strings.NewReader(strings.Join(addrs, "\n"))
	cmd.Stdout = stdout
	if _, err := osutil.Run(cmd); err != nil {
		return "", err
	}
	return stdout.String(), nil
}
