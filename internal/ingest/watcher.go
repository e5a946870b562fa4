package ingest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the docs directory and re-ingests markdown files as they
// change. Events are debounced so editors that write in bursts trigger a
// single re-ingest per file.
type Watcher struct {
	docsRoot     string
	watcher      *fsnotify.Watcher
	ingester     *Ingester
	debounceTime time.Duration

	mu      sync.Mutex
	pending map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher over the ingester's docs root.
func NewWatcher(docsRoot string, ingester *Ingester) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		docsRoot:     docsRoot,
		watcher:      fsw,
		ingester:     ingester,
		debounceTime: 500 * time.Millisecond,
		pending:      make(map[string]bool),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Start begins watching. All subdirectories of the docs root are watched;
// fsnotify does not recurse on its own.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.docsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()
	return nil
}

// Stop stops the watcher and waits for in-flight work.
func (w *Watcher) Stop() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	if ext != ".md" && ext != ".markdown" {
		// new directories need watching for future files
		if event.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				_ = w.watcher.Add(event.Name)
			}
		}
		return
	}
	rel, err := filepath.Rel(w.docsRoot, event.Name)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.pending[rel] = true
	w.mu.Unlock()
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounceTime)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.mu.Lock()
			if len(w.pending) == 0 {
				w.mu.Unlock()
				continue
			}
			batch := w.pending
			w.pending = make(map[string]bool)
			w.mu.Unlock()

			for rel := range batch {
				if _, err := w.ingester.IngestFile(w.ctx, rel); err != nil {
					slog.Warn("re-ingest failed", "path", rel, "error", err)
				}
			}
		}
	}
}
