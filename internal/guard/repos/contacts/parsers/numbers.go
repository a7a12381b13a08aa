// Package parsers reads plain-text number lists used for contact import and
// the file-backed address book.
package parsers

import (
	"bufio"
	"io"
	"strings"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
)

// partialMarker marks a line's number as a suffix match.
const partialMarker = "*"

// NumberRecord is one parsed line of a number list.
type NumberRecord struct {
	Number domain.ContactNumber
	Name   string
	Line   int
}

// ParseNumberList parses a newline-delimited list of "number[, name]" lines.
// Default is exact; a leading "*" marks a partial (suffix) number.
//
// Behavior:
// - Supports comments starting with '#' (inline or whole-line)
// - Normalizes numbers; lines without digits are skipped
// - De-duplicates by number, first-seen line and mode win
func ParseNumberList(r io.Reader, source string, logger log.Logger) ([]NumberRecord, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]NumberRecord, 0, 64)
	logger.Debug(map[string]any{"source": source}, "parse_number_list_start")
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")

		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		raw, name, _ := strings.Cut(line, ",")
		raw = strings.TrimSpace(raw)
		mode := domain.MatchExact
		if strings.HasPrefix(raw, partialMarker) {
			mode = domain.MatchPartial
			raw = strings.TrimPrefix(raw, partialMarker)
		}

		n := domain.ContactNumber{Number: phone.Normalize(raw), Mode: mode}
		if n.Number == "" {
			logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "skip_invalid_number")
			continue
		}
		if _, ok := seen[n.Number]; ok {
			logger.Debug(map[string]any{"line": lineNum, "number": n.Number, "mode": mode.String()}, "skip_duplicate")
			continue
		}
		seen[n.Number] = struct{}{}
		out = append(out, NumberRecord{Number: n, Name: strings.TrimSpace(name), Line: lineNum})
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_number_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_number_list_done")
	return out, nil
}
