package workspace

import (
	"io/fs"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/halvect/remod/pkg/resolve"
)

// staleSet buffers loose-file change notifications from the watcher
// goroutine. The owner thread drains it; the watcher never touches the
// cache directly, since holder sets and flags are single-owner state.
type staleSet struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

func newStaleSet() *staleSet {
	return &staleSet{paths: make(map[string]struct{})}
}

func (s *staleSet) add(norm string) {
	s.mu.Lock()
	s.paths[norm] = struct{}{}
	s.mu.Unlock()
}

func (s *staleSet) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.paths) == 0 {
		return nil
	}
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	s.paths = make(map[string]struct{})
	return out
}

// StartWatcher watches the game root's loose directories and records
// writes to files in a pending set. Call ApplyStale from the owner thread
// to flag matching open handles. The returned function stops the watcher.
func (w *Workspace) StartWatcher() (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// fsnotify does not recurse; register every existing directory.
	root := w.base.GameRoot()
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
	if err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				rel, err := filepath.Rel(root, event.Name)
				if err != nil {
					continue
				}
				w.pending.add(resolve.NormalizePath(filepath.ToSlash(rel)))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn().Err(err).Msg("loose-file watcher error")
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			watcher.Close()
		})
	}
	return stop, nil
}

// ApplyStale marks open handles for externally changed loose files as
// stale. Must be called from the workspace's owner thread.
func (w *Workspace) ApplyStale() []string {
	changed := w.pending.drain()
	for _, norm := range changed {
		w.cache.MarkStale(norm)
	}
	return changed
}
