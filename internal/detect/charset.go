package detect

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// charset maps CTC class indices to dictionary tokens. Index 0 is the
// blank class; dictionary tokens start at index 1.
type charset struct {
	tokens []string
}

// loadCharset reads a dictionary file with one token per line. Empty
// lines are skipped and a UTF-8 BOM on the first line is removed.
func loadCharset(path string) (*charset, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided dictionary path
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer func() { _ = f.Close() }()

	var tokens []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line == "" {
			continue
		}
		tokens = append(tokens, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("dictionary %s is empty", path)
	}
	return &charset{tokens: tokens}, nil
}

// token returns the text for a CTC class index, or "" for blank and
// out-of-range indices.
func (c *charset) token(class int) string {
	i := class - 1
	if i < 0 || i >= len(c.tokens) {
		return ""
	}
	return c.tokens[i]
}
