package ingest

import (
	"strings"
	"testing"
)

func TestParseSections(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []ParsedSection
	}{
		{
			name:    "single heading with body",
			content: "# Guide\n\nSome text.\n",
			want: []ParsedSection{
				{Title: "Guide", Content: "Some text.", StartLine: 1, EndLine: 4, Level: 1},
			},
		},
		{
			name:    "multiple headings",
			content: "# Guide\n\nIntro.\n\n## Setup\n\nRun it.\n\n## Usage\n\nCall it.",
			want: []ParsedSection{
				{Title: "Guide", Content: "Intro.", StartLine: 1, EndLine: 4, Level: 1},
				{Title: "Setup", Content: "Run it.", StartLine: 5, EndLine: 8, Level: 2},
				{Title: "Usage", Content: "Call it.", StartLine: 9, EndLine: 11, Level: 2},
			},
		},
		{
			name:    "preamble before first heading",
			content: "Frontmatter text.\n\n# Guide\n\nBody.",
			want: []ParsedSection{
				{Title: "", Content: "Frontmatter text.", StartLine: 1, EndLine: 2, Level: 0},
				{Title: "Guide", Content: "Body.", StartLine: 3, EndLine: 5, Level: 1},
			},
		},
		{
			name:    "heading without body keeps the section",
			content: "# Guide\n## Empty\n## After\n\nText.",
			want: []ParsedSection{
				{Title: "Guide", Content: "", StartLine: 1, EndLine: 1, Level: 1},
				{Title: "Empty", Content: "", StartLine: 2, EndLine: 2, Level: 2},
				{Title: "After", Content: "Text.", StartLine: 3, EndLine: 5, Level: 2},
			},
		},
		{
			name:    "deep heading levels",
			content: "###### Tiny\n\nx",
			want: []ParsedSection{
				{Title: "Tiny", Content: "x", StartLine: 1, EndLine: 3, Level: 6},
			},
		},
		{
			name:    "hash without space is not a heading",
			content: "# Guide\n\n#hashtag line\n",
			want: []ParsedSection{
				{Title: "Guide", Content: "#hashtag line", StartLine: 1, EndLine: 4, Level: 1},
			},
		},
		{
			name:    "empty content",
			content: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSections(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("sections = %d, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("section %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDocumentTitle(t *testing.T) {
	withH1 := ParseSections("## Minor\n\n# The Real Title\n\nBody.")
	if got := DocumentTitle("docs/guide.md", withH1); got != "The Real Title" {
		t.Errorf("title = %q, want first H1", got)
	}

	noH1 := ParseSections("## Only Subheadings\n\nBody.")
	if got := DocumentTitle("docs/getting-started.md", noH1); got != "getting-started" {
		t.Errorf("title = %q, want file name fallback", got)
	}
}

func TestChecksum(t *testing.T) {
	a := Checksum("hello")
	b := Checksum("hello")
	c := Checksum("hello!")

	if a != b {
		t.Error("checksum must be deterministic")
	}
	if a == c {
		t.Error("different content must produce different checksums")
	}
	if len(a) != 64 || strings.ToLower(a) != a {
		t.Errorf("checksum %q is not lowercase hex sha-256", a)
	}
}
