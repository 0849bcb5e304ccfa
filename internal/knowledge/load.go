package knowledge

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var blankLineRE = regexp.MustCompile(`\n\s*\n`)

// Load reads Markdown from r and indexes its paragraphs. Table rows are
// flattened into one note each, with the header and separator rows
// dropped.
func Load(r io.Reader, opts ...Option) (*Store, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read knowledge: %w", err)
	}
	flat, err := flattenTables(raw)
	if err != nil {
		return nil, fmt.Errorf("read knowledge: %w", err)
	}
	return New(splitParagraphs(flat), opts...), nil
}

// LoadFile is Load for a file on disk.
func LoadFile(path string, opts ...Option) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts...)
}

// flattenTables rewrites "| a | b |" rows as paragraphs "a b". A table's
// first row is treated as its header and skipped. Other lines pass through
// unchanged.
func flattenTables(src []byte) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	inTable := false
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !isTableRow(line) {
			inTable = false
			b.WriteString(line)
			b.WriteByte('\n')
			continue
		}
		header := !inTable
		inTable = true
		cells := tableCells(line)
		if header || len(cells) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(strings.Join(cells, " "))
		b.WriteString("\n\n")
	}
	return b.String(), sc.Err()
}

func isTableRow(line string) bool {
	return len(line) > 1 && strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|")
}

// tableCells returns the non-empty cells of a row, or nil for a separator
// row like "|---|:--:|".
func tableCells(line string) []string {
	var cells []string
	sep := true
	for _, c := range strings.Split(strings.Trim(line, "|"), "|") {
		c = strings.TrimSpace(c)
		if strings.Trim(c, ":- ") != "" {
			sep = false
		}
		if c != "" {
			cells = append(cells, c)
		}
	}
	if sep {
		return nil
	}
	return cells
}

func splitParagraphs(s string) []string {
	var out []string
	for _, p := range blankLineRE.Split(s, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.Join(strings.Fields(p), " "))
		}
	}
	return out
}
