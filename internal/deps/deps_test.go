package deps

import (
	"context"
	"path/filepath"
	"testing"

	"docpilot/internal/store"
)

func TestExtractReferences(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []Reference
	}{
		{
			name:    "markdown link to local file",
			content: "See [the setup guide](setup.md) for details.",
			want:    []Reference{{Kind: KindLink, Value: "setup.md"}},
		},
		{
			name:    "markdown link with anchor",
			content: "Details in [config](docs/config.md#environment-variables).",
			want:    []Reference{{Kind: KindLink, Value: "docs/config.md#environment-variables"}},
		},
		{
			name:    "external urls are skipped",
			content: "Visit [the site](https://example.com) or [here](http://example.org).",
			want:    nil,
		},
		{
			name:    "explicit quoted reference",
			content: `For auth, see "Authentication Setup" section.`,
			want:    []Reference{{Kind: KindReference, Value: "Authentication Setup"}},
		},
		{
			name:    "explicit reference with refer to",
			content: `Refer to the 'Deployment Pipeline' for release steps.`,
			want:    []Reference{{Kind: KindReference, Value: "Deployment Pipeline"}},
		},
		{
			name:    "dotted code identifier",
			content: "Call `client.Connect` before any request.",
			want:    []Reference{{Kind: KindCode, Value: "client.Connect"}},
		},
		{
			name:    "plain backticked word is not a reference",
			content: "Set the `timeout` option.",
			want:    nil,
		},
		{
			name:    "common head words are filtered",
			content: "Check `user.name` and `status.code` fields.",
			want:    nil,
		},
		{
			name:    "duplicates are collapsed",
			content: "See [a](setup.md) and again [b](setup.md).",
			want:    []Reference{{Kind: KindLink, Value: "setup.md"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractReferences(tt.content)
			if len(got) != len(tt.want) {
				t.Fatalf("refs = %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ref %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Environment Variables", "environment-variables"},
		{"  Setup & Install!  ", "setup--install"},
		{"API v2", "api-v2"},
	}
	for _, tt := range tests {
		if got := slugify(tt.in); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func openDepsStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestRebuildDocumentResolvesEdges(t *testing.T) {
	ctx := context.Background()
	st := openDepsStore(t)

	target := &store.Document{
		FilePath: "docs/setup.md",
		Title:    "Setup",
		Content:  "# Setup\n\nRun the installer.\n\n## Environment Variables\n\nSet HOME.",
		Checksum: "t",
	}
	targetSections := []store.Section{
		{Title: "Setup", Content: "Run the installer.", Order: 0},
		{Title: "Environment Variables", Content: "Set HOME.", Order: 1},
	}
	if err := st.CreateDocument(ctx, target, targetSections); err != nil {
		t.Fatalf("failed to create target document: %v", err)
	}

	source := &store.Document{
		FilePath: "docs/usage.md",
		Title:    "Usage",
		Content:  "usage",
		Checksum: "s",
	}
	sourceSections := []store.Section{
		{
			Title: "Usage",
			Content: "Start with [setup](setup.md). " +
				"Variables are listed in [env](setup.md#environment-variables). " +
				`Also see "Environment Variables" when debugging.`,
			Order: 0,
		},
	}
	if err := st.CreateDocument(ctx, source, sourceSections); err != nil {
		t.Fatalf("failed to create source document: %v", err)
	}

	if err := NewBuilder(st).RebuildDocument(ctx, source.ID); err != nil {
		t.Fatalf("RebuildDocument failed: %v", err)
	}

	out, err := st.OutgoingDependencies(ctx, sourceSections[0].ID)
	if err != nil {
		t.Fatalf("OutgoingDependencies failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("edges = %+v, want 3", out)
	}

	byKind := make(map[string]string)
	for _, d := range out {
		byKind[d.Kind] = d.TargetSectionID
	}
	// The anchored link and the quoted reference both resolve to the
	// Environment Variables section; the bare link resolves to the
	// document's first section.
	if byKind[KindReference] != targetSections[1].ID {
		t.Errorf("quoted reference resolved to %s, want env section", byKind[KindReference])
	}

	targets := make(map[string]int)
	for _, d := range out {
		targets[d.TargetSectionID]++
	}
	if targets[targetSections[0].ID] != 1 || targets[targetSections[1].ID] != 2 {
		t.Errorf("edge targets = %v", targets)
	}
}

func TestRebuildDocumentIgnoresUnresolvable(t *testing.T) {
	ctx := context.Background()
	st := openDepsStore(t)

	doc := &store.Document{FilePath: "docs/solo.md", Title: "Solo", Content: "x", Checksum: "c"}
	sections := []store.Section{
		{Title: "Solo", Content: "See [missing](nowhere.md) and `pkg.Thing`.", Order: 0},
	}
	if err := st.CreateDocument(ctx, doc, sections); err != nil {
		t.Fatalf("failed to create document: %v", err)
	}

	if err := NewBuilder(st).RebuildDocument(ctx, doc.ID); err != nil {
		t.Fatalf("RebuildDocument failed: %v", err)
	}

	out, err := st.OutgoingDependencies(ctx, sections[0].ID)
	if err != nil {
		t.Fatalf("OutgoingDependencies failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("edges = %+v, want none", out)
	}
}
