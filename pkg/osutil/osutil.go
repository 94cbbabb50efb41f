// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package osutil contains the OS helpers the tool needs:
// subprocess running and input reading.
package osutil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/ulikunitz/xz"
)

// Run runs cmd to completion and returns its combined output (unless
// the caller redirected the streams). If the command fails, err includes
// the captured output and the exit code.
func Run(cmd *exec.Cmd) ([]byte, error) {
	output := new(bytes.Buffer)
	if cmd.Stdout == nil {
		cmd.Stdout = output
	}
	if cmd.Stderr == nil {
		cmd.Stderr = output
	}
	if err := cmd.Run(); err != nil {
		exitCode := 0
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return output.Bytes(), &VerboseError{
			Title:    fmt.Sprintf("failed to run %q: %v", cmd.Args, err),
			Output:   output.Bytes(),
			ExitCode: exitCode,
		}
	}
	return output.Bytes(), nil
}

// Command is a thin wrapper around os/exec.Command, the single place to
// hook process attributes if we ever need them.
func Command(bin string, args ...string) *exec.Cmd {
	return exec.Command(bin, args...)
}

type VerboseError struct {
	Title    string
	Output   []byte
	ExitCode int
}

func (err *VerboseError) Error() string {
	if len(err.Output) == 0 {
		return err.Title
	}
	return fmt.Sprintf("%v\n%s", err.Title, err.Output)
}

// IsExist returns true if the file name exists.
func IsExist(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// IsAccessible checks if the file can be opened.
func IsAccessible(name string) error {
	if !IsExist(name) {
		return fmt.Errorf("%v does not exist", name)
	}
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("%v can't be opened (%v)", name, err)
	}
	f.Close()
	return nil
}

var xzMagic = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// ReadInput reads r to the end. Console logs pulled from CI come
// xz-compressed, so an xz stream is detected by its magic and
// decompressed transparently; everything else is returned verbatim.
func ReadInput(r io.Reader) ([]byte, error) {
	br := bufio.NewReader(r)
	if magic, err := br.Peek(len(xzMagic)); err == nil && bytes.Equal(magic, xzMagic) {
		xr, err := xz.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("failed to read xz stream: %w", err)
		}
		data, err := io.ReadAll(xr)
		if err != nil {
			return nil, fmt.Errorf("failed to read xz stream: %w", err)
		}
		return data, nil
	}
	return io.ReadAll(br)
}
