// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSymbolizer records calls and resolves every backtrace to a
// deterministic one-line block.
type fakeSymbolizer struct {
	bins   []string
	calls  [][]string
	failAt int // 1-based index of the call to fail on, 0 means never
}

func (fake *fakeSymbolizer) Symbolize(bin string, addrs []string) (string, error) {
	fake.bins = append(fake.bins, bin)
	fake.calls = append(fake.calls, addrs)
	if fake.failAt == len(fake.calls) {
		return "", errors.New("exec: \"llvm-symbolizer\": executable file not found in $PATH")
	}
	return "resolved " + strings.Join(addrs, " "), nil
}

func TestSymbolize(t *testing.T) {
	fake := &fakeSymbolizer{}
	log := []byte("backtrace: [0x30 0x40]\nBacktrace:\n0x10\n0x20\n")
	resolved, err := Symbolize(log, "kernel.elf", fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"resolved 0x30 0x40", "resolved 0x10 0x20"}, resolved)
	assert.Equal(t, [][]string{{"0x30", "0x40"}, {"0x10", "0x20"}}, fake.calls)
	assert.Equal(t, []string{"kernel.elf", "kernel.elf"}, fake.bins)
}

func TestSymbolizeNothingFound(t *testing.T) {
	fake := &fakeSymbolizer{}
	resolved, err := Symbolize([]byte("just a log\n"), "kernel.elf", fake)
	require.NoError(t, err)
	assert.Empty(t, resolved)
	assert.Empty(t, fake.calls, "resolver must not be invoked without occurrences")
}

func TestSymbolizeAbortsOnFailure(t *testing.T) {
	fake := &fakeSymbolizer{failAt: 1}
	log := []byte("backtrace: [0x1]\nbacktrace: [0x2]\nbacktrace: [0x3]\n")
	resolved, err := Symbolize(log, "kernel.elf", fake)
	require.Error(t, err)
	assert.Nil(t, resolved, "a failed run must not produce partial results")
	assert.Len(t, fake.calls, 1, "occurrences after the failed one must not be attempted")
}

func TestWrite(t *testing.T) {
	separator := strings.Repeat("=", 80)
	tests := []struct {
		name     string
		resolved []string
		want     string
	}{
		{
			name:     "empty",
			resolved: nil,
			want:     "",
		},
		{
			name:     "single",
			resolved: []string{"main\nkernel/src/main.rs:10\n"},
			want: "Found 1 backtrace\n" +
				separator + "\n" +
				"Backtrace #1\n" +
				"main\nkernel/src/main.rs:10\n\n",
		},
		{
			name:     "multiple",
			resolved: []string{"first block", "second block"},
			want: "Found 2 backtraces, printing them in order they occur in logs\n" +
				separator + "\n" +
				"Backtrace #1\n" +
				"first block\n" +
				separator + "\n" +
				"Backtrace #2\n" +
				"second block\n",
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf := new(bytes.Buffer)
			Write(buf, test.resolved)
			assert.Equal(t, test.want, buf.String())
		})
	}
}

func TestEndToEnd(t *testing.T) {
	log := []byte("some log\nBacktrace:\n0x10\n0x20\nmore log\nbacktrace: [0x30 0x40]\n")
	fake := &fakeSymbolizer{}
	resolved, err := Symbolize(log, "kernel.elf", fake)
	require.NoError(t, err)

	buf := new(bytes.Buffer)
	Write(buf, resolved)
	separator := strings.Repeat("=", 80)
	want := "Found 2 backtraces, printing them in order they occur in logs\n" +
		separator + "\n" +
		"Backtrace #1\n" +
		"resolved 0x10 0x20\n" +
		separator + "\n" +
		"Backtrace #2\n" +
		"resolved 0x30 0x40\n"
	assert.Equal(t, want, buf.String())
}
