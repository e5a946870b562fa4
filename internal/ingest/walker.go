package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

// DefaultIgnorePatterns are directories that never contain documentation.
var DefaultIgnorePatterns = []string{
	".git",
	"node_modules",
	"vendor",
	"dist",
	"build",
	".idea",
	".vscode",
	".DS_Store",
}

const ignoreFileName = ".docpilotignore"

// NewIgnoreMatcher builds an ignore matcher from the defaults plus any
// .docpilotignore file at the docs root (gitignore syntax).
func NewIgnoreMatcher(docsRoot string) *gitignore.GitIgnore {
	patterns := append([]string{}, DefaultIgnorePatterns...)

	data, err := os.ReadFile(filepath.Join(docsRoot, ignoreFileName))
	if err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" && !strings.HasPrefix(line, "#") {
				patterns = append(patterns, line)
			}
		}
	}

	return gitignore.CompileIgnoreLines(patterns...)
}

// WalkMarkdown returns the relative paths of all markdown files under
// docsRoot that are not excluded by the ignore matcher.
func WalkMarkdown(docsRoot string, ignore *gitignore.GitIgnore) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(docsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries, keep walking
		}
		rel, err := filepath.Rel(docsRoot, path)
		if err != nil {
			return nil
		}
		if rel == "." {
			return nil
		}
		if ignore != nil && ignore.MatchesPath(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".md" || ext == ".markdown" {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk docs directory: %w", err)
	}
	return paths, nil
}
