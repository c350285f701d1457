package combo

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the combo database file and invokes a callback when its
// contents change, so callers can invalidate caches built on a stale
// knowledge-base snapshot.
type Watcher struct {
	fw       *fsnotify.Watcher
	path     string
	onChange func()
	done     chan struct{}
}

// NewWatcher starts watching the combo database at path. onChange is called
// from the watcher goroutine on every write or create event for the file.
func NewWatcher(path string, onChange func()) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: SQLite rewrites can replace the file inode.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &Watcher{
		fw:       fw,
		path:     filepath.Clean(path),
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				log.Printf("combo database changed (%s), signaling invalidation", event.Op)
				w.onChange()
			}
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Printf("combo database watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
