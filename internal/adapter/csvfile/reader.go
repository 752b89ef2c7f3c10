// Package csvfile reads GIOŚ station metadata and yearly measurement exports,
// and persists merged tables and report tables as CSV.
package csvfile

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const sniffSize = 4096

// newReader returns a lenient CSV reader. The delimiter is ';' when the first
// line has more semicolons than commas, ',' otherwise. A UTF-8 BOM is skipped.
func newReader(r io.Reader) (*csv.Reader, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(b, utf8BOM) {
		if _, err := br.Discard(len(utf8BOM)); err != nil {
			return nil, err
		}
	}

	delim := ','
	line, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		delim = ';'
	}

	cr := csv.NewReader(br)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr, nil
}

func readAll(r io.Reader) ([][]string, error) {
	cr, err := newReader(r)
	if err != nil {
		return nil, err
	}
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	return records, nil
}

func readFile(path string, decode func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	if err := decode(f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func normHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
