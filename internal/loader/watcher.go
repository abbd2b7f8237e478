package loader

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long the watcher waits after the last write before
// signalling; editors and sync clients write files in bursts.
const settleDelay = 2 * time.Second

// Watcher observes a drop folder and signals when new or changed text
// files have settled, so ingestion can be re-run on the folder.
type Watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
}

// NewWatcher creates a watcher for the given directory.
func NewWatcher(dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}
	return &Watcher{fs: fs, logger: logger}, nil
}

// Changes returns a channel that receives one signal per settled burst of
// text-file creates/writes. The channel closes when ctx is cancelled or
// the underlying watcher fails.
func (w *Watcher) Changes(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		var settle *time.Timer
		var settleC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.fs.Events:
				if !ok {
					return
				}
				if !IsTextFile(ev.Name) {
					continue
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				w.logger.Debug("drop folder changed", "path", ev.Name, "op", ev.Op.String())
				if settle == nil {
					settle = time.NewTimer(settleDelay)
					settleC = settle.C
				} else {
					if !settle.Stop() {
						select {
						case <-settle.C:
						default:
						}
					}
					settle.Reset(settleDelay)
				}
			case <-settleC:
				settle = nil
				settleC = nil
				select {
				case out <- struct{}{}:
				default:
					// A signal is already pending; coalesce.
				}
			case err, ok := <-w.fs.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}()

	return out
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
