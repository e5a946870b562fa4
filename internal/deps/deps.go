// Package deps builds and queries the section cross-reference graph. Edges
// are extracted from markdown links, explicit "see 'X'" references and
// backticked code identifiers, then resolved against the ingested corpus.
package deps

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"docpilot/internal/store"
)

// Reference kinds, mirrored into store.Dependency.Kind.
const (
	KindLink      = "link"
	KindReference = "reference"
	KindCode      = "code"
)

var (
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)
	explicitRefPattern  = regexp.MustCompile(`(?i)(?:see|refer to|check|read|described in|explained in)\s+(?:the\s+)?["']([^"']{3,80})["'](?:\s+section)?`)
	codeRefPattern      = regexp.MustCompile("`([a-zA-Z_][a-zA-Z0-9_]*(?:\\.[a-zA-Z_][a-zA-Z0-9_]*)+)`")
)

// Words too generic to be useful code references.
var commonCodeWords = map[string]bool{
	"id": true, "name": true, "type": true, "value": true, "data": true,
	"item": true, "user": true, "result": true, "error": true, "status": true,
	"code": true, "message": true, "text": true, "self": true, "this": true,
}

// Reference is one raw cross-reference found in section content.
type Reference struct {
	Kind  string
	Value string // link target, quoted title, or dotted identifier
}

// ExtractReferences scans markdown content for cross-references.
func ExtractReferences(content string) []Reference {
	var refs []Reference
	seen := make(map[string]bool)

	add := func(kind, value string) {
		key := kind + "\x00" + value
		if value != "" && !seen[key] {
			seen[key] = true
			refs = append(refs, Reference{Kind: kind, Value: value})
		}
	}

	for _, m := range markdownLinkPattern.FindAllStringSubmatch(content, -1) {
		target := strings.TrimSpace(m[2])
		// external URLs are not section references
		if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
			continue
		}
		add(KindLink, target)
	}
	for _, m := range explicitRefPattern.FindAllStringSubmatch(content, -1) {
		add(KindReference, strings.TrimSpace(m[1]))
	}
	for _, m := range codeRefPattern.FindAllStringSubmatch(content, -1) {
		head := strings.ToLower(strings.SplitN(m[1], ".", 2)[0])
		if commonCodeWords[head] {
			continue
		}
		add(KindCode, m[1])
	}
	return refs
}

// Builder resolves extracted references against the corpus and persists the
// resulting edges.
type Builder struct {
	store *store.Store
}

// NewBuilder creates a dependency graph builder.
func NewBuilder(st *store.Store) *Builder {
	return &Builder{store: st}
}

// corpusSection is a resolution-time view of one section.
type corpusSection struct {
	id       string
	title    string
	filePath string
	first    bool // first section of its document
}

// RebuildDocument re-extracts and re-resolves every outgoing edge of the
// document's sections. Called after ingest or re-ingest.
func (b *Builder) RebuildDocument(ctx context.Context, documentID string) error {
	corpus, err := b.loadCorpus(ctx)
	if err != nil {
		return err
	}

	sections, err := b.store.ListSections(ctx, documentID)
	if err != nil {
		return fmt.Errorf("failed to list sections: %w", err)
	}

	for _, sec := range sections {
		refs := ExtractReferences(sec.Content)
		var edges []store.Dependency
		for _, ref := range refs {
			targetID := resolve(ref, corpus)
			if targetID == "" || targetID == sec.ID {
				continue
			}
			edges = append(edges, store.Dependency{
				TargetSectionID: targetID,
				Kind:            ref.Kind,
			})
		}
		if err := b.store.ReplaceDependencies(ctx, sec.ID, edges); err != nil {
			return fmt.Errorf("failed to store dependencies for section %s: %w", sec.ID, err)
		}
	}
	return nil
}

func (b *Builder) loadCorpus(ctx context.Context) ([]corpusSection, error) {
	docs, err := b.store.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	var corpus []corpusSection
	for _, doc := range docs {
		sections, err := b.store.ListSections(ctx, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list sections of %s: %w", doc.FilePath, err)
		}
		for i, sec := range sections {
			corpus = append(corpus, corpusSection{
				id:       sec.ID,
				title:    sec.Title,
				filePath: doc.FilePath,
				first:    i == 0,
			})
		}
	}
	return corpus, nil
}

// resolve maps a reference to a section id, or "" when nothing matches.
// Resolution order: file path (+anchor), exact title, title substring.
func resolve(ref Reference, corpus []corpusSection) string {
	switch ref.Kind {
	case KindLink:
		path, anchor, _ := strings.Cut(ref.Value, "#")
		path = strings.TrimPrefix(strings.TrimPrefix(path, "./"), "/")
		for _, cs := range corpus {
			if path != "" && !strings.HasSuffix(cs.filePath, path) {
				continue
			}
			if anchor != "" {
				if slugify(cs.title) == strings.ToLower(anchor) {
					return cs.id
				}
				continue
			}
			if path != "" && cs.first {
				return cs.id
			}
		}
	case KindReference:
		want := strings.ToLower(ref.Value)
		for _, cs := range corpus {
			if strings.ToLower(cs.title) == want {
				return cs.id
			}
		}
	case KindCode:
		want := strings.ToLower(ref.Value)
		for _, cs := range corpus {
			title := strings.ToLower(cs.title)
			if title != "" && strings.Contains(title, want) {
				return cs.id
			}
		}
	}
	return ""
}

func slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = strings.ReplaceAll(s, " ", "-")
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' {
			return r
		}
		return -1
	}, s)
}
