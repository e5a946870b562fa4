package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docpilot/internal/search"
	"docpilot/internal/store"
)

func setupIngester(t *testing.T) (*Ingester, *store.Store, *search.Index, string) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(context.Background(), filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ix, err := search.Open(filepath.Join(dir, "test.bleve"))
	if err != nil {
		t.Fatalf("failed to open index: %v", err)
	}
	t.Cleanup(func() { ix.Close() })

	docsRoot := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docsRoot, 0o755); err != nil {
		t.Fatalf("failed to create docs root: %v", err)
	}
	return New(st, ix, docsRoot), st, ix, docsRoot
}

func writeDoc(t *testing.T, docsRoot, rel, content string) {
	t.Helper()
	path := filepath.Join(docsRoot, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", rel, err)
	}
}

func TestIngestAllWalksAndStores(t *testing.T) {
	ctx := context.Background()
	ing, st, ix, docsRoot := setupIngester(t)

	writeDoc(t, docsRoot, "guide.md", "# Guide\n\n## Setup\n\nRun the installer.\n")
	writeDoc(t, docsRoot, "nested/api.md", "# API\n\nEndpoints are listed below.\n")
	writeDoc(t, docsRoot, "notes.txt", "not markdown")
	writeDoc(t, docsRoot, "node_modules/junk.md", "# Junk\n\nignored")

	n, err := ing.IngestAll(ctx)
	if err != nil {
		t.Fatalf("IngestAll failed: %v", err)
	}
	if n != 2 {
		t.Errorf("ingested = %d, want 2 markdown files", n)
	}

	docs, err := st.ListDocuments(ctx)
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("documents = %d, want 2", len(docs))
	}

	doc, err := st.GetDocumentByPath(ctx, "guide.md")
	if err != nil {
		t.Fatalf("GetDocumentByPath failed: %v", err)
	}
	if doc.Title != "Guide" {
		t.Errorf("title = %q, want Guide", doc.Title)
	}
	sections, err := st.ListSections(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListSections failed: %v", err)
	}
	if len(sections) != 2 {
		t.Errorf("sections = %d, want 2", len(sections))
	}

	hits, err := ix.Search("installer", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].FilePath != "guide.md" {
		t.Errorf("search hits = %+v, want the Setup section of guide.md", hits)
	}
}

func TestIngestContentSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	ing, _, _, _ := setupIngester(t)

	content := "# Guide\n\nBody.\n"
	updated, err := ing.IngestContent(ctx, "guide.md", content)
	if err != nil {
		t.Fatalf("IngestContent failed: %v", err)
	}
	if !updated {
		t.Error("first ingest must report a change")
	}

	updated, err = ing.IngestContent(ctx, "guide.md", content)
	if err != nil {
		t.Fatalf("IngestContent failed: %v", err)
	}
	if updated {
		t.Error("unchanged content must be skipped on checksum match")
	}
}

func TestIngestContentReplacesChangedDocument(t *testing.T) {
	ctx := context.Background()
	ing, st, ix, _ := setupIngester(t)

	if _, err := ing.IngestContent(ctx, "guide.md", "# Guide\n\nOld content about tarballs.\n"); err != nil {
		t.Fatalf("IngestContent failed: %v", err)
	}
	doc, err := st.GetDocumentByPath(ctx, "guide.md")
	if err != nil {
		t.Fatalf("GetDocumentByPath failed: %v", err)
	}
	firstID := doc.ID

	updated, err := ing.IngestContent(ctx, "guide.md", "# Guide\n\nNew content about containers.\n")
	if err != nil {
		t.Fatalf("IngestContent failed: %v", err)
	}
	if !updated {
		t.Error("changed content must report an update")
	}

	doc, err = st.GetDocumentByPath(ctx, "guide.md")
	if err != nil {
		t.Fatalf("GetDocumentByPath failed: %v", err)
	}
	if doc.ID != firstID {
		t.Error("re-ingest must keep the document id stable")
	}

	if hits, err := ix.Search("tarballs", 10); err != nil || len(hits) != 0 {
		t.Errorf("stale section still indexed: hits=%+v err=%v", hits, err)
	}
	if hits, err := ix.Search("containers", 10); err != nil || len(hits) != 1 {
		t.Errorf("new section not indexed: hits=%+v err=%v", hits, err)
	}
}

func TestWalkMarkdownHonorsIgnoreFile(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "keep.md", "# Keep")
	writeDoc(t, dir, "drafts/wip.md", "# WIP")
	writeDoc(t, dir, ".docpilotignore", "drafts\n# a comment\n")

	paths, err := WalkMarkdown(dir, NewIgnoreMatcher(dir))
	if err != nil {
		t.Fatalf("WalkMarkdown failed: %v", err)
	}
	if len(paths) != 1 || paths[0] != "keep.md" {
		t.Errorf("paths = %v, want only keep.md", paths)
	}
}
