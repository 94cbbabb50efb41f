// Copyright 2025 osdev-tools authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package symbolizer

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"fmt"
	"io"
	"sort"
	"strconv"
	"sync"

	"github.com/ianlancetaylor/demangle"
)

// ELF resolves addresses directly from the binary's DWARF info and
// symbol table, without spawning an external tool. Intended for
// embedding the library where llvm-symbolizer is not installed; the
// output mimics its GNU style ("func" line, then "file:line" line,
// then a blank line, "??"/"??:0" when unknown).
type ELF struct {
	path    string
	ef      *elf.File
	dw      *dwarf.Data
	cus     []addrRange
	funcs   []addrRange
	symbols []elf.Symbol

	mu    sync.Mutex
	lines map[dwarf.Offset][]dwarf.LineEntry
}

type addrRange struct {
	low   uint64
	high  uint64
	entry *dwarf.Entry
}

// OpenELF creates a native symbolizer for the binary bin.
// The returned ELF must be Close'd.
func OpenELF(bin string) (*ELF, error) {
	ef, err := elf.Open(bin)
	if err != nil {
		return nil, fmt.Errorf("failed to open binary %v: %w", bin, err)
	}
	dw, err := ef.DWARF()
	if err != nil {
		ef.Close()
		return nil, fmt.Errorf("failed to parse DWARF in %v: %w", bin, err)
	}
	symbols, _ := ef.Symbols()
	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].Value < symbols[j].Value
	})
	es := &ELF{
		path:    bin,
		ef:      ef,
		dw:      dw,
		symbols: symbols,
		lines:   make(map[dwarf.Offset][]dwarf.LineEntry),
	}
	if err := es.buildIndex(); err != nil {
		es.Close()
		return nil, fmt.Errorf("failed to index DWARF in %v: %w", bin, err)
	}
	return es, nil
}

func (es *ELF) Close() {
	if es.ef != nil {
		es.ef.Close()
	}
}

// buildIndex collects PC ranges of all compile units and subprograms in
// one pass over the DWARF tree. Line tables are parsed lazily per CU.
func (es *ELF) buildIndex() error {
	r := es.dw.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			break
		}
		switch entry.Tag {
		case dwarf.TagCompileUnit:
			es.cus = appendRanges(es.cus, es.dw, entry)
		case dwarf.TagSubprogram:
			es.funcs = appendRanges(es.funcs, es.dw, entry)
			r.SkipChildren()
		}
	}
	for _, ranges := range [][]addrRange{es.cus, es.funcs} {
		sort.Slice(ranges, func(i, j int) bool {
			return ranges[i].low < ranges[j].low
		})
	}
	return nil
}

func appendRanges(to []addrRange, dw *dwarf.Data, entry *dwarf.Entry) []addrRange {
	ranges, err := dw.Ranges(entry)
	if err != nil {
		return to
	}
	for _, rng := range ranges {
		to = append(to, addrRange{rng[0], rng[1], entry})
	}
	return to
}

func findRange(ranges []addrRange, pc uint64) *dwarf.Entry {
	idx := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].high > pc
	})
	if idx < len(ranges) && ranges[idx].low <= pc {
		return ranges[idx].entry
	}
	return nil
}

// Symbolize resolves the address tokens and renders one text frame per
// address in llvm-symbolizer's format.
func (es *ELF) Symbolize(bin string, addrs []string) (string, error) {
	if bin != es.path {
		return "", fmt.Errorf("symbolizer is opened for %v, got %v", es.path, bin)
	}
	buf := new(bytes.Buffer)
	for _, addr := range addrs {
		pc, err := parseAddr(addr)
		if err != nil {
			return "", err
		}
		fn, file, line := es.symbolizePC(pc)
		if fn == "" {
			fn = "??"
		}
		if file == "" {
			file = "??"
		}
		fmt.Fprintf(buf, "%v\n%v:%v\n\n", fn, file, line)
	}
	return buf.String(), nil
}

// parseAddr converts a raw address token (0x1f, 0vABC, 0Xab) to a PC.
func parseAddr(token string) (uint64, error) {
	ok := len(token) > 2 && token[0] == '0' &&
		(token[1] == 'x' || token[1] == 'X' || token[1] == 'v' || token[1] == 'V')
	if !ok {
		return 0, fmt.Errorf("malformed address token %q", token)
	}
	pc, err := strconv.ParseUint(token[2:], 16, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed address token %q: %w", token, err)
	}
	return pc, nil
}

func (es *ELF) symbolizePC(pc uint64) (fn, file string, line int) {
	if entry := findRange(es.funcs, pc); entry != nil {
		fn = funcName(entry)
	}
	if fn == "" {
		fn = es.findSymbol(pc)
	}
	cu := findRange(es.cus, pc)
	if cu == nil {
		return fn, "", 0
	}
	entries, err := es.lineEntries(cu)
	if err != nil {
		return fn, "", 0
	}
	// Last line entry with Address <= pc covers it, unless it is an
	// EndSequence marker (then pc falls in a hole between sequences).
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].Address > pc
	})
	if idx > 0 && !entries[idx-1].EndSequence {
		return fn, entries[idx-1].File.Name, entries[idx-1].Line
	}
	return fn, "", 0
}

func (es *ELF) lineEntries(cu *dwarf.Entry) ([]dwarf.LineEntry, error) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if entries, ok := es.lines[cu.Offset]; ok {
		return entries, nil
	}
	lr, err := es.dw.LineReader(cu)
	if err != nil {
		return nil, err
	}
	if lr == nil {
		return nil, fmt.Errorf("compile unit has no line table")
	}
	var entries []dwarf.LineEntry
	for {
		var entry dwarf.LineEntry
		if err := lr.Next(&entry); err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Address < entries[j].Address
	})
	es.lines[cu.Offset] = entries
	return entries, nil
}

func funcName(entry *dwarf.Entry) string {
	if name, ok := entry.Val(dwarf.AttrLinkageName).(string); ok {
		if d, err := demangle.ToString(name); err == nil {
			return d
		}
		return name
	}
	name, _ := entry.Val(dwarf.AttrName).(string)
	return name
}

// findSymbol falls back to the ELF symbol table for functions that have
// no subprogram DIE (assembly entry points and the like).
func (es *ELF) findSymbol(pc uint64) string {
	idx := sort.Search(len(es.symbols), func(i int) bool {
		return es.symbols[i].Value > pc
	})
	if idx == 0 {
		return ""
	}
	sym := es.symbols[idx-1]
	limit := sym.Value + sym.Size
	if sym.Size == 0 {
		// Zero-size symbols extend to the next symbol, as in kernel
		// symbol tables.
		if idx < len(es.symbols) {
			limit = es.symbols[idx].Value
		} else {
			limit = sym.Value + 4096
		}
	}
	if pc >= limit {
		return ""
	}
	return sym.Name
}
