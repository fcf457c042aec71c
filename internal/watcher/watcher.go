// Package watcher reports changes to the override store so callers can
// refresh the resources they have resolved.
package watcher

import (
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/blake2b"

	"kbres/internal/resource"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 250 * time.Millisecond

// Change is an override file that was written or removed.
type Change struct {
	Class     resource.Class
	Name      string // resource name, e.g. "qwerty_it" or "it" for a dictionary
	Path      string
	Removed   bool
	Digest    string // hex blake2b-256 of the new content
	Size      int64
	Timestamp time.Time
}

// Config configures a Watcher.
type Config struct {
	// BaseDir is the override store root.
	BaseDir string
	// Classes to watch; empty means every class.
	Classes  []resource.Class
	Debounce time.Duration
	Logger   *slog.Logger
}

// pending is a path with unreported activity.
type pending struct {
	lastEvent time.Time
	removed   bool
}

// Watcher monitors the override class directories.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	baseDir   string
	classes   map[string]resource.Class // class dir -> class
	interval  time.Duration
	log       *slog.Logger

	// path -> activity not yet reported
	state   map[string]pending
	digests map[string]string // path -> last reported digest
	stateMu sync.Mutex

	events chan Change
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if cfg.BaseDir == "" {
		return nil, errors.New("watcher: empty base directory")
	}
	classes := cfg.Classes
	if len(classes) == 0 {
		classes = resource.Classes()
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsWatcher: fsWatcher,
		baseDir:   cfg.BaseDir,
		classes:   make(map[string]resource.Class, len(classes)),
		interval:  cfg.Debounce,
		log:       log.With(slog.String("component", "watcher")),
		state:     make(map[string]pending),
		digests:   make(map[string]string),
		events:    make(chan Change, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}
	for _, c := range classes {
		w.classes[c.Dir()] = c
	}
	return w, nil
}

// Events returns the channel of changes.
func (w *Watcher) Events() <-chan Change {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start creates any missing class directory and begins watching.
func (w *Watcher) Start() error {
	for dir := range w.classes {
		path := filepath.Join(w.baseDir, dir)
		if err := os.MkdirAll(path, 0700); err != nil {
			return err
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return err
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	w.log.Debug("watching overrides", slog.String("dir", w.baseDir), slog.Int("classes", len(w.classes)))
	return nil
}

// Stop shuts down the watcher and closes its channels.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

// classify maps a path to its class and resource name. Temp, lock and
// foreign files are rejected.
func (w *Watcher) classify(path string) (resource.Class, string, bool) {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return "", "", false
	}
	class, ok := w.classes[filepath.Base(filepath.Dir(path))]
	if !ok {
		return "", "", false
	}
	name, ok := class.NameOf(base)
	return class, name, ok
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if _, _, ok := w.classify(event.Name); !ok {
				continue
			}

			var removed bool
			switch {
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				removed = true
			default:
				continue
			}

			w.stateMu.Lock()
			w.state[event.Name] = pending{lastEvent: time.Now(), removed: removed}
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(max(w.interval/4, 10*time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case now := <-ticker.C:
			w.flush(now)
		}
	}
}

// flush reports paths that have been quiet for the debounce interval. The
// lock is released while files are hashed.
func (w *Watcher) flush(now time.Time) {
	threshold := now.Add(-w.interval)

	type quiet struct {
		path string
		p    pending
	}
	var ready []quiet
	w.stateMu.Lock()
	for path, p := range w.state {
		if p.lastEvent.Before(threshold) {
			ready = append(ready, quiet{path: path, p: p})
		}
	}
	w.stateMu.Unlock()

	for _, q := range ready {
		class, name, _ := w.classify(q.path)
		change := Change{Class: class, Name: name, Path: q.path, Removed: q.p.removed, Timestamp: now}

		if !change.Removed {
			digest, size, err := HashFile(q.path)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				change.Removed = true
			case err != nil:
				w.sendErr(err)
				w.forget(q.path, q.p)
				continue
			default:
				change.Digest, change.Size = digest, size
			}
		}

		w.stateMu.Lock()
		if cur, ok := w.state[q.path]; !ok || cur != q.p {
			// Touched again while hashing; wait for it to settle.
			w.stateMu.Unlock()
			continue
		}
		if !change.Removed && w.digests[q.path] == change.Digest {
			delete(w.state, q.path)
			w.stateMu.Unlock()
			continue
		}
		select {
		case w.events <- change:
			delete(w.state, q.path)
			if change.Removed {
				delete(w.digests, q.path)
			} else {
				w.digests[q.path] = change.Digest
			}
		default:
			// Channel full, retry on the next tick.
		}
		w.stateMu.Unlock()
	}
}

func (w *Watcher) forget(path string, p pending) {
	w.stateMu.Lock()
	if cur, ok := w.state[path]; ok && cur == p {
		delete(w.state, path)
	}
	w.stateMu.Unlock()
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile returns the hex blake2b-256 digest and size of a file.
func HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h, _ := blake2b.New256(nil)
	size, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), size, nil
}
