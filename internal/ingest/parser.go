// Package ingest loads markdown documentation into the store and the search
// index. Documents are split into sections on headings; each section becomes
// the atomic unit of search and edit proposals.
package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

var headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// ParsedSection is one heading-delimited span of a markdown document.
type ParsedSection struct {
	Title     string
	Content   string
	StartLine int // 1-indexed
	EndLine   int // inclusive
	Level     int // heading level, 0 for preamble before the first heading
}

// Checksum returns the SHA-256 hex digest of content.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ParseSections splits markdown content into sections on headings. Text before
// the first heading becomes an untitled preamble section.
func ParseSections(content string) []ParsedSection {
	lines := strings.Split(content, "\n")

	var sections []ParsedSection
	current := ParsedSection{StartLine: 1}
	var contentLines []string

	flush := func(endLine int) {
		body := strings.TrimSpace(strings.Join(contentLines, "\n"))
		if body == "" && current.Title == "" {
			return
		}
		current.Content = body
		current.EndLine = endLine
		sections = append(sections, current)
	}

	for i, line := range lines {
		lineNo := i + 1
		m := headerPattern.FindStringSubmatch(line)
		if m == nil {
			contentLines = append(contentLines, line)
			continue
		}
		flush(lineNo - 1)
		current = ParsedSection{
			Title:     strings.TrimSpace(m[2]),
			StartLine: lineNo,
			Level:     len(m[1]),
		}
		contentLines = contentLines[:0]
	}
	flush(len(lines))

	return sections
}

// DocumentTitle derives a document title from the first H1 heading, falling
// back to the file name without extension.
func DocumentTitle(filePath string, sections []ParsedSection) string {
	for _, sec := range sections {
		if sec.Level == 1 && sec.Title != "" {
			return sec.Title
		}
	}
	base := filepath.Base(filePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
