// Package scan parses the raw output of a barcode scanner: one item code per
// line, duplicates meaningful, blank lines ignored. Parsing is purely
// syntactic; nothing here knows about the catalog.
package scan

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentstation/stocktake/pkg/constants"
	"github.com/agentstation/stocktake/pkg/errors"
)

// Line is one non-blank scanned code with its 1-based position in the input.
type Line struct {
	Code string
	Line int
}

// Record is a parsed scan file.
type Record struct {
	// Path is the file the record was read from, if any.
	Path string

	// Raw is the verbatim input, copied into the inventory directory.
	Raw []byte

	// Lines are the non-blank codes in input order.
	Lines []Line

	// Blank counts skipped blank lines.
	Blank int
}

// Parse reads one code per line. Surrounding whitespace is trimmed and blank
// lines are skipped.
func Parse(r io.Reader) (*Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return parse(raw)
}

// ParseString parses an in-memory scan.
func ParseString(s string) (*Record, error) {
	return parse([]byte(s))
}

// maxLineLength bounds a single scanned line. Longer lines fail the parse
// instead of silently ending it.
const maxLineLength = 1024 * 1024

func parse(raw []byte) (*Record, error) {
	rec := &Record{Raw: raw}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	n := 0
	for sc.Scan() {
		n++
		code := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if code == "" {
			rec.Blank++
			continue
		}
		rec.Lines = append(rec.Lines, Line{Code: code, Line: n})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapParse("scan", "", fmt.Errorf("line %d: %w", n+1, err))
	}
	return rec, nil
}

// ParseFile validates and parses a scan file. It fails fast with an
// InputError before anything else happens: F001 when no path is given, F002
// when the file does not exist, F003 when it is not a text file and F004 when
// it cannot be read.
func ParseFile(path string) (*Record, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.NewInputError(errors.CodeNoFile, "", nil)
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return nil, errors.NewInputError(errors.CodeFileMissing, path, nil)
	case err != nil:
		return nil, errors.NewInputError(errors.CodeReadFailure, path, err)
	case info.IsDir():
		return nil, errors.NewInputError(errors.CodeInvalidFormat, path, errors.New("is a directory"))
	}

	if !strings.EqualFold(filepath.Ext(path), constants.ScanExtension) {
		return nil, errors.NewInputError(errors.CodeInvalidFormat, path, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewInputError(errors.CodeReadFailure, path, err)
	}
	defer f.Close() //nolint:errcheck // read-only

	rec, err := Parse(f)
	if err != nil {
		return nil, errors.NewInputError(errors.CodeReadFailure, path, err)
	}
	rec.Path = path
	return rec, nil
}

// Counts tallies the record.
func (r *Record) Counts() *Counts {
	c := NewCounts()
	for _, l := range r.Lines {
		c.Add(l.Code, l.Line)
	}
	return c
}

// NonBlank returns the number of scanned codes.
func (r *Record) NonBlank() int {
	return len(r.Lines)
}
