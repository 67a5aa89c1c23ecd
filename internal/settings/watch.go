package settings

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// reloadQuiet coalesces the burst of filesystem events most editors emit for
// a single save into one reload.
const reloadQuiet = 250 * time.Millisecond

// Watch reloads the settings file whenever it changes and hands the parsed
// result to apply. The directory is watched rather than the file itself so
// rename-based saves keep working. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, path string, log *zap.SugaredLogger, apply func(Settings)) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(resolved)); err != nil {
		return err
	}

	var pending *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if pending != nil {
			pending.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != resolved {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadQuiet, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			cfg, err := Load(resolved)
			if err != nil {
				log.Warnw("settings reload failed; keeping previous settings", "path", resolved, "error", err)
				continue
			}
			log.Infow("settings reloaded", "path", resolved)
			apply(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warnw("settings watcher error", "error", err)
		}
	}
}
