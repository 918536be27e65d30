// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package service

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aplane-algo/apvault/internal/logging"
	"github.com/aplane-algo/apvault/internal/vault"
)

// DefaultDebounce coalesces bursts of editor writes into one reload.
const DefaultDebounce = 500 * time.Millisecond

// WatchPolicy reloads the allow-list whenever its file changes, until ctx is
// done. It is a no-op unless the allowlist policy is configured.
func (s *Service) WatchPolicy(ctx context.Context, debounce time.Duration) error {
	if s.Config.Policy.Destination != vault.PolicyAllowlist {
		return nil
	}
	path := filepath.Clean(s.Config.Policy.AllowlistFile)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	// Watch the directory: editors replace files by rename, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch allow-list directory: %w", err)
	}

	go func() {
		defer func() { _ = watcher.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					if err := s.ReloadPolicy(); err != nil {
						logging.Logger.Error("allow-list reload failed, keeping previous policy", "path", path, "error", err)
					}
				})

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return nil
}
