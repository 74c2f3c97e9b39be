package shader

import (
	"errors"
	"path/filepath"
	"sync"

	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	mu       *sync.Mutex
	cache    Cache
	fsnotify *fsnotify.Watcher
	dirs     map[string]bool
	onChange func(paths []string)
	isClosed bool
	done     chan struct{}
	wg       *sync.WaitGroup
}

// Watcher reports edits to the files a Cache depends on.
type Watcher interface {
	// Sync starts watching the directory of every file the cache currently depends on.
	// Call it after programs are loaded or reloaded so newly included files are covered.
	//
	// Returns:
	//   - error: an error if a directory could not be watched
	Sync() error

	// Close stops the watch loop and releases the underlying fsnotify watcher.
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher creates a Watcher for c and starts its event loop.
// onChange runs on the watcher goroutine with the program paths affected by a write or create.
//
// Parameters:
//   - c: the cache whose files are watched
//   - onChange: the callback receiving affected program paths
//
// Returns:
//   - Watcher: the running watcher
//   - error: an error if fsnotify could not be initialized or the initial Sync failed
func NewWatcher(c Cache, onChange func(paths []string)) (Watcher, error) {
	fsWatch, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		mu:       &sync.Mutex{},
		cache:    c,
		fsnotify: fsWatch,
		dirs:     make(map[string]bool),
		onChange: onChange,
		done:     make(chan struct{}),
		wg:       &sync.WaitGroup{},
	}
	if err := w.Sync(); err != nil {
		fsWatch.Close()
		return nil, err
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isClosed {
		return errors.New("shader watcher already closed")
	}

	var errs []error
	for _, file := range w.cache.Files() {
		dir := filepath.Dir(file)
		if w.dirs[dir] {
			continue
		}
		if err := w.fsnotify.Add(dir); err != nil {
			errs = append(errs, err)
			continue
		}
		w.dirs[dir] = true
		logging.LogDebug("watching shader directory %s", dir)
	}
	return errors.Join(errs...)
}

func (w *watcher) Close() error {
	w.mu.Lock()
	if w.isClosed {
		w.mu.Unlock()
		return nil
	}
	w.isClosed = true
	close(w.done)
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsnotify.Close()
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if paths := w.cache.Dependents(e.Name); len(paths) > 0 {
				logging.LogInfo("shader source %s changed, affects %v", e.Name, paths)
				w.onChange(paths)
			}
		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return
			}
			logging.LogError("shader watcher: %v", err)
		case <-w.done:
			return
		}
	}
}
