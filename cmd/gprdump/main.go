// Command gprdump produces a .gprdump artifact for a built Go binary: a
// sequence of (start_rva, end_rva) ranges covering functions that are
// known, by name, not to touch extended/vector processor state.
//
// This is a conservative stand-in for real instruction-level analysis:
// no example repo in the corpus imports an x86 disassembler, so there is
// no library path to classifying individual instructions. Everything not
// named on the allow-list defaults to "needs XSAVE", matching the
// bitmap's own documented conservative default.
package main

import (
	"debug/elf"
	"debug/gosym"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"strings"
)

func main() {
	var (
		binPath   = flag.String("bin", "", "path to the built Go binary to analyze")
		outPath   = flag.String("out", "", "path to write the .gprdump artifact (defaults to <bin>.gprdump)")
		allowList = flag.String("gp-only", "", "comma-separated list of function names known to be GP-only")
	)
	flag.Parse()

	if *binPath == "" {
		fmt.Fprintln(os.Stderr, "gprdump: -bin is required")
		os.Exit(2)
	}
	out := *outPath
	if out == "" {
		out = *binPath + ".gprdump"
	}
	var allow map[string]bool
	if *allowList != "" {
		allow = make(map[string]bool)
		for _, name := range strings.Split(*allowList, ",") {
			allow[strings.TrimSpace(name)] = true
		}
	}

	if err := run(*binPath, out, allow); err != nil {
		fmt.Fprintf(os.Stderr, "gprdump: %v\n", err)
		os.Exit(1)
	}
}

func run(binPath, outPath string, allow map[string]bool) error {
	f, err := elf.Open(binPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", binPath, err)
	}
	defer f.Close()

	textSection := f.Section(".text")
	if textSection == nil {
		return fmt.Errorf("%s has no .text section", binPath)
	}
	textBase := textSection.Addr

	symtab, err := loadSymTab(f)
	if err != nil {
		return fmt.Errorf("reading symbol table of %s: %w", binPath, err)
	}

	w, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	defer w.Close()

	var buf [16]byte
	count := 0
	for _, fn := range symtab.Funcs {
		if !allow[fn.Name] {
			continue
		}
		if fn.Entry < textBase || fn.End < fn.Entry {
			continue
		}
		startRVA := fn.Entry - textBase
		endRVA := fn.End - textBase
		binary.LittleEndian.PutUint64(buf[0:8], startRVA)
		binary.LittleEndian.PutUint64(buf[8:16], endRVA)
		if _, err := w.Write(buf[:]); err != nil {
			return fmt.Errorf("writing %s: %w", outPath, err)
		}
		count++
	}
	fmt.Fprintf(os.Stdout, "gprdump: wrote %d range(s) to %s\n", count, outPath)
	return nil
}

func loadSymTab(f *elf.File) (*gosym.Table, error) {
	pclntab := f.Section(".gopclntab")
	if pclntab == nil {
		return nil, fmt.Errorf("no .gopclntab section (not a Go binary?)")
	}
	pclntabData, err := pclntab.Data()
	if err != nil {
		return nil, err
	}
	symtabData := []byte(nil)
	if symtabSec := f.Section(".gosymtab"); symtabSec != nil {
		symtabData, _ = symtabSec.Data()
	}
	textSection := f.Section(".text")
	lineTable := gosym.NewLineTable(pclntabData, textSection.Addr)
	return gosym.NewTable(symtabData, lineTable)
}
