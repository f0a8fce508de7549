package corpus

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change represents a detected corpus document change.
type Change struct {
	File string // Absolute path
}

// Watcher monitors a corpus directory tree for YAML document changes using
// fsnotify. Events are debounced per file so an editor save burst yields a
// single change.
type Watcher struct {
	Dir      string
	Debounce time.Duration // Per-file quiet window; zero means 100ms
	Changes  <-chan Change // Read-only external channel

	changes chan Change // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher
}

// NewWatcher creates a new watcher for the given corpus directory.
func NewWatcher(dir string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Dir:     dir,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start begins watching the corpus root and its document subdirectories.
// fsnotify watches are not recursive, so contract and extension directories
// are added individually; directories created later are picked up from
// their create events.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}

	contracts := filepath.Join(w.Dir, ContractsDir)
	if _, err := os.Stat(contracts); err == nil {
		if err := w.watcher.Add(contracts); err != nil {
			return err
		}
	}

	extensions := filepath.Join(w.Dir, ExtensionsDir)
	if entries, err := os.ReadDir(extensions); err == nil {
		if err := w.watcher.Add(extensions); err != nil {
			return err
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			if err := w.watcher.Add(filepath.Join(extensions, e.Name())); err != nil {
				return err
			}
		}
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				// Drain pending on close.
				for file := range pending {
					w.changes <- Change{File: file}
				}
				return
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					// New document directory needs its own watch. The
					// knowledge dir is engine-written; watching it would
					// re-trigger on every promotion.
					if filepath.Base(event.Name) != KnowledgeDir {
						_ = w.watcher.Add(event.Name)
					}
					continue
				}
			}

			if !w.isDocument(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				pending[event.Name] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if now.Sub(t) >= debounce {
					w.changes <- Change{File: file}
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) isDocument(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, ".yaml") {
		return false
	}
	// Promoted knowledge is written by the engine itself.
	if filepath.Base(filepath.Dir(name)) == KnowledgeDir {
		return false
	}
	return true
}
