package resolver

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/chime/internal/log"
)

// Watch invalidates r's memoised lookups whenever a file under its root is
// created, removed or renamed. It returns once the watcher is registered;
// watching stops when ctx is cancelled.
func Watch(ctx context.Context, r *FileResolver) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := addTree(w, r.root); err != nil {
		_ = w.Close()
		return err
	}

	log.SafeGo("resolver.watch", func() {
		defer func() { _ = w.Close() }()
		watchLoop(ctx, w, r)
	})
	return nil
}

func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walking %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func watchLoop(ctx context.Context, w *fsnotify.Watcher, r *FileResolver) {
	log.Debug(log.CatResolver, "Watching resource root", "root", r.root)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				// New directories need their own watch.
				if err := addTree(w, ev.Name); err != nil {
					log.Debug(log.CatResolver, "Could not watch new path", "path", ev.Name, "error", err)
				}
			}
			r.Invalidate()
			log.Debug(log.CatResolver, "Resource root changed", "path", ev.Name, "op", ev.Op.String())
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatResolver, "Watcher error", "error", err)
		}
	}
}
