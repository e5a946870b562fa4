package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"docpilot/internal/deps"
	"docpilot/internal/search"
	"docpilot/internal/store"
)

// Ingester loads markdown files into the store, the search index and the
// dependency graph.
type Ingester struct {
	store    *store.Store
	index    *search.Index
	deps     *deps.Builder
	docsRoot string
}

// New creates an ingester rooted at docsRoot.
func New(st *store.Store, idx *search.Index, docsRoot string) *Ingester {
	return &Ingester{
		store:    st,
		index:    idx,
		deps:     deps.NewBuilder(st),
		docsRoot: docsRoot,
	}
}

// IngestAll walks the docs directory and ingests every markdown file.
// Returns the number of documents created or updated.
func (in *Ingester) IngestAll(ctx context.Context) (int, error) {
	ignore := NewIgnoreMatcher(in.docsRoot)
	paths, err := WalkMarkdown(in.docsRoot, ignore)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, rel := range paths {
		updated, err := in.IngestFile(ctx, rel)
		if err != nil {
			slog.Warn("failed to ingest document", "path", rel, "error", err)
			continue
		}
		if updated {
			changed++
		}
	}
	return changed, nil
}

// IngestFile ingests one markdown file by path relative to the docs root.
// Returns false when the document is unchanged (checksum match).
func (in *Ingester) IngestFile(ctx context.Context, relPath string) (bool, error) {
	data, err := os.ReadFile(filepath.Join(in.docsRoot, relPath))
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", relPath, err)
	}
	return in.IngestContent(ctx, relPath, string(data))
}

// IngestContent ingests raw markdown content under the given path. Existing
// documents are replaced only when the checksum differs.
func (in *Ingester) IngestContent(ctx context.Context, filePath, content string) (bool, error) {
	checksum := Checksum(content)

	existing, err := in.store.GetDocumentByPath(ctx, filePath)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, fmt.Errorf("failed to look up document: %w", err)
	}
	if existing != nil && existing.Checksum == checksum {
		return false, nil
	}

	parsed := ParseSections(content)
	sections := make([]store.Section, len(parsed))
	for i, p := range parsed {
		title := p.Title
		if title == "" {
			title = fmt.Sprintf("Section %d", i+1)
		}
		sections[i] = store.Section{
			Title:     title,
			Content:   p.Content,
			Order:     i,
			StartLine: p.StartLine,
			EndLine:   p.EndLine,
		}
	}

	doc := &store.Document{
		FilePath: filePath,
		Title:    DocumentTitle(filePath, parsed),
		Content:  content,
		Checksum: checksum,
	}

	if existing == nil {
		if err := in.store.CreateDocument(ctx, doc, sections); err != nil {
			return false, fmt.Errorf("failed to create document: %w", err)
		}
	} else {
		doc.ID = existing.ID
		if err := in.index.DeleteDocumentSections(doc.ID); err != nil {
			slog.Warn("failed to remove stale index entries", "document", filePath, "error", err)
		}
		if err := in.store.ReplaceDocument(ctx, doc, sections); err != nil {
			return false, fmt.Errorf("failed to replace document: %w", err)
		}
	}

	for _, sec := range sections {
		if sec.Content == "" {
			continue
		}
		if err := in.index.IndexSection(sec.ID, doc.ID, sec.Title, doc.FilePath, sec.Content); err != nil {
			slog.Warn("failed to index section", "section", sec.Title, "error", err)
		}
	}

	if err := in.deps.RebuildDocument(ctx, doc.ID); err != nil {
		slog.Warn("failed to rebuild dependencies", "document", filePath, "error", err)
	}

	slog.Info("ingested document", "path", filePath, "sections", len(sections))
	return true, nil
}
