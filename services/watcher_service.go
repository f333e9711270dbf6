package services

import (
	"context"
	"log"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatcherService keeps the index in sync with the guides directory while
// the server runs. Only JSON guide records are watched; manuals are picked
// up by the next full ingestion pass.
type WatcherService struct {
	indexer *IndexingService
	dir     string
}

// NewWatcherService creates a watcher over the guides directory.
func NewWatcherService(indexer *IndexingService, dir string) *WatcherService {
	return &WatcherService{indexer: indexer, dir: dir}
}

// Watch runs until the context is cancelled.
func (w *WatcherService) Watch(ctx context.Context) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("WATCHER ERROR: failed to create file watcher: %v", err)
		return
	}
	defer watcher.Close()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".json") {
					continue
				}

				// Editors often write via a temp file and rename, so Create
				// and Write are handled the same way.
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					log.Printf("WATCHER: guide modified/created: %s. Re-indexing...", event.Name)
					if err := w.indexer.ReindexGuide(ctx, event.Name); err != nil {
						log.Printf("WATCHER ERROR: failed to re-index %s: %v", event.Name, err)
					}
				} else if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					log.Printf("WATCHER: guide removed/renamed: %s. Removing from index...", event.Name)
					if err := w.indexer.RemoveGuide(ctx, event.Name); err != nil {
						log.Printf("WATCHER ERROR: failed to remove %s: %v", event.Name, err)
					}
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("WATCHER ERROR: %v", err)
			case <-ctx.Done():
				log.Println("WATCHER: context cancelled, shutting down watcher.")
				return
			}
		}
	}()

	log.Printf("WATCHER: watching guides directory: %s", w.dir)
	if err := watcher.Add(w.dir); err != nil {
		log.Printf("WATCHER ERROR: failed to add path to watcher: %v", err)
	}

	<-ctx.Done()
}
