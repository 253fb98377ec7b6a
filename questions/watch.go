/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package questions

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the bank at path whenever it changes on disk and passes each
// successfully parsed bank to onReload. A bank that fails to load is logged
// and skipped, leaving the previous one in use. Watch blocks until ctx is
// cancelled.
func Watch(ctx context.Context, path string, logger *zap.Logger, onReload func(*Bank)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	path = filepath.Clean(path)

	// Editors often replace the file instead of writing it in place, so watch
	// the parent directory and filter by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			b, err := Load(path)
			if err != nil {
				logger.Warn("question bank reload failed", zap.String("path", path), zap.Error(err))
				continue
			}

			for _, w := range b.Warnings() {
				logger.Warn("question bank self-check", zap.String("mismatch", w.String()))
			}

			logger.Info("question bank reloaded", zap.String("path", path), zap.Int("questions", b.Len()))
			onReload(b)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("question bank watcher error", zap.Error(err))
		}
	}
}
