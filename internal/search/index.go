// Package search provides the keyword/semantic section index consumed by the
// agent's search tools. Sections are indexed individually; results carry a
// short preview and a relevance score.
package search

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

const previewLen = 200

// Result is a ranked search hit for one section.
type Result struct {
	SectionID  string  `json:"section_id"`
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	FilePath   string  `json:"file_path"`
	Preview    string  `json:"preview"`
	Score      float64 `json:"score"`
}

// Index provides full-text search over documentation sections.
type Index struct {
	index bleve.Index
	path  string
}

// Open creates or opens the section index. A corrupted index is deleted and
// recreated rather than failing startup.
func Open(indexPath string) (*Index, error) {
	index, err := bleve.Open(indexPath)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create section index: %w", err)
		}
	} else if err != nil {
		slog.Warn("section index appears corrupted, recreating", "error", err)
		if index != nil {
			index.Close()
		}
		if err := os.RemoveAll(indexPath); err != nil {
			return nil, fmt.Errorf("failed to remove corrupted index: %w", err)
		}
		index, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to recreate section index: %w", err)
		}
	}

	return &Index{index: index, path: indexPath}, nil
}

// Close closes the underlying index.
func (ix *Index) Close() error {
	return ix.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	sectionMapping := bleve.NewDocumentMapping()

	// Stored identity fields, not analyzed
	for _, name := range []string{"section_id", "document_id", "file_path"} {
		f := bleve.NewTextFieldMapping()
		f.Analyzer = keyword.Name
		f.Store = true
		f.Index = true
		sectionMapping.AddFieldMappingsAt(name, f)
	}

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = true
	titleField.Index = true
	sectionMapping.AddFieldMappingsAt("title", titleField)

	previewField := bleve.NewTextFieldMapping()
	previewField.Analyzer = keyword.Name
	previewField.Store = true
	previewField.Index = false
	sectionMapping.AddFieldMappingsAt("preview", previewField)

	// Searchable body text, analyzed but not stored
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name
	textField.Store = false
	textField.Index = true
	sectionMapping.AddFieldMappingsAt("content", textField)

	indexMapping.DefaultMapping = sectionMapping
	return indexMapping
}

// IndexSection adds or replaces one section in the index.
func (ix *Index) IndexSection(sectionID, documentID, title, filePath, content string) error {
	doc := map[string]interface{}{
		"section_id":  sectionID,
		"document_id": documentID,
		"title":       title,
		"file_path":   filePath,
		"preview":     makePreview(content),
		"content":     content,
	}
	return ix.index.Index(sectionID, doc)
}

// DeleteSection removes a section from the index.
func (ix *Index) DeleteSection(sectionID string) error {
	return ix.index.Delete(sectionID)
}

// DeleteDocumentSections removes every indexed section of a document.
func (ix *Index) DeleteDocumentSections(documentID string) error {
	q := bleve.NewTermQuery(documentID)
	q.SetField("document_id")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	res, err := ix.index.Search(req)
	if err != nil {
		return fmt.Errorf("failed to find document sections: %w", err)
	}
	for _, hit := range res.Hits {
		if err := ix.index.Delete(hit.ID); err != nil {
			return fmt.Errorf("failed to delete section %s: %w", hit.ID, err)
		}
	}
	return nil
}

// Search returns the top k sections matching the query, ordered by descending
// score. Title matches are boosted over body matches.
func (ix *Index) Search(query string, k int) ([]Result, error) {
	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)

	combined := bleve.NewDisjunctionQuery(contentQuery, titleQuery)

	req := bleve.NewSearchRequest(combined)
	req.Size = k
	req.Fields = []string{"section_id", "document_id", "title", "file_path", "preview"}

	res, err := ix.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("section search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, Result{
			SectionID:  hit.ID,
			DocumentID: fieldString(hit.Fields, "document_id"),
			Title:      fieldString(hit.Fields, "title"),
			FilePath:   fieldString(hit.Fields, "file_path"),
			Preview:    fieldString(hit.Fields, "preview"),
			Score:      hit.Score,
		})
	}
	return results, nil
}

func fieldString(fields map[string]interface{}, name string) string {
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

func makePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLen {
		return content
	}
	return string(runes[:previewLen])
}
