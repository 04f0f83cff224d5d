// pkg/watch/watch.go
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports changes to Go source files under a set of roots.
type Watcher struct {
	roots  []string
	ignore []string
	exts   []string
	log    *zap.Logger
}

type Option func(*Watcher)

// WithIgnore skips the given directories and everything below them.
// The generated output directory belongs here.
func WithIgnore(dirs ...string) Option {
	return func(w *Watcher) {
		for _, d := range dirs {
			if d == "" {
				continue
			}
			if abs, err := filepath.Abs(d); err == nil {
				w.ignore = append(w.ignore, abs)
			}
		}
	}
}

// WithExtensions replaces the watched file extensions (default ".go").
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		if len(exts) > 0 {
			w.exts = exts
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) {
		if l != nil {
			w.log = l
		}
	}
}

func New(roots []string, opts ...Option) *Watcher {
	w := &Watcher{roots: roots, exts: []string{".go"}, log: zap.NewNop()}
	for _, o := range opts {
		o(w)
	}
	if len(w.roots) == 0 {
		w.roots = []string{"."}
	}
	return w
}

// Subscribe watches every root recursively and calls onChange with the path
// of each created, written, removed or renamed source file until ctx is done.
// Directories created later are picked up as they appear.
func (w *Watcher) Subscribe(ctx context.Context, onChange func(path string)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	for _, root := range w.roots {
		if err := w.addTree(fw, root); err != nil {
			_ = fw.Close()
			return err
		}
	}

	go func() {
		defer fw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fw.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) && isDir(ev.Name) {
					if err := w.addTree(fw, ev.Name); err != nil {
						w.log.Warn("watch add failed", zap.String("path", ev.Name), zap.Error(err))
					}
					continue
				}
				if ev.Op == fsnotify.Chmod || !w.relevant(ev.Name) {
					continue
				}
				onChange(ev.Name)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				w.log.Warn("watch error", zap.Error(err))
			}
		}
	}()

	w.log.Info("watching sources", zap.Strings("roots", w.roots))
	return nil
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if w.ignored(path) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch: %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) relevant(path string) bool {
	if w.ignored(path) {
		return false
	}
	ext := filepath.Ext(path)
	for _, e := range w.exts {
		if e == ext {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, dir := range w.ignore {
		if abs == dir || strings.HasPrefix(abs, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
