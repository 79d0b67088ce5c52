package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForSocket blocks until the file at path exists or ctx is done. The
// host creates its socket lazily, so callers that start together with it use
// this before dialing.
func WaitForSocket(ctx context.Context, path string) error {
	path = filepath.Clean(path)
	if exists(path) {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	// The socket may have appeared between the first check and Add.
	if exists(path) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for socket %s: %w", path, ctx.Err())

		case event, ok := <-w.Events:
			if !ok {
				return errors.New("wait for socket: watcher closed")
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Chmod) {
				if exists(path) {
					return nil
				}
			}

		case err, ok := <-w.Errors:
			if !ok {
				return errors.New("wait for socket: watcher closed")
			}
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
