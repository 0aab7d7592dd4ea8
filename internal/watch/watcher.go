package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"photon/internal/logging"
	"photon/internal/optimizer"
)

// RunFunc performs one optimize pass.
type RunFunc func(ctx context.Context) error

// Options tunes a Watcher.
type Options struct {
	// Debounce is the quiet period required before a run starts.
	Debounce time.Duration
	// InitialRun starts a run as soon as watching begins.
	InitialRun bool
}

// change is one filesystem notification. force bypasses the image filter
// for events such as a watched directory disappearing.
type change struct {
	path  string
	force bool
}

// Watcher drives RunFunc from filesystem changes under root.
type Watcher struct {
	root   string
	opts   Options
	run    RunFunc
	logger *slog.Logger
}

// New constructs a Watcher. A zero debounce defaults to two seconds.
func New(root string, opts Options, run RunFunc, logger *slog.Logger) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = 2 * time.Second
	}
	return &Watcher{
		root:   root,
		opts:   opts,
		run:    run,
		logger: logging.NewComponentLogger(logger, "watch"),
	}
}

// Run watches until ctx is cancelled. An in-flight run is allowed to observe
// the cancellation and return before Run does.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	dirs := map[string]struct{}{}
	if _, err := w.addTree(fw, dirs, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for image changes",
		logging.String("root", w.root),
		logging.Int("directories", len(dirs)),
		logging.Duration("debounce", w.opts.Debounce))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	changes := make(chan change, 64)
	errs := make(chan error, 8)
	go w.pump(ctx, fw, dirs, changes, errs)
	return w.loop(ctx, changes, errs)
}

// pump translates fsnotify events into changes, registering new directories.
func (w *Watcher) pump(ctx context.Context, fw *fsnotify.Watcher, dirs map[string]struct{}, changes chan<- change, errs chan<- error) {
	defer close(changes)
	send := func(c change) bool {
		select {
		case changes <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					images, err := w.addTree(fw, dirs, ev.Name)
					if err != nil {
						select {
						case errs <- err:
						default:
						}
					}
					for _, img := range images {
						if !send(change{path: img}) {
							return
						}
					}
					continue
				}
			}
			if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				if _, watched := dirs[ev.Name]; watched {
					delete(dirs, ev.Name)
					if !send(change{path: ev.Name, force: true}) {
						return
					}
					continue
				}
			}
			if !send(change{path: ev.Name}) {
				return
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			default:
			}
		}
	}
}

// addTree watches dir and every non-hidden subdirectory, returning the
// images already present so a moved-in folder triggers a run.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dirs map[string]struct{}, dir string) ([]string, error) {
	var images []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			dirs[path] = struct{}{}
			return nil
		}
		if optimizer.IsImage(path) {
			images = append(images, path)
		}
		return nil
	})
	return images, err
}

func relevant(c change) bool {
	if c.force {
		return true
	}
	if strings.HasPrefix(filepath.Base(c.path), ".") {
		return false
	}
	return optimizer.IsImage(c.path)
}

// loop owns all scheduling state. It returns when ctx is cancelled or the
// change stream closes, after any in-flight run finishes.
func (w *Watcher) loop(ctx context.Context, changes <-chan change, errs <-chan error) error {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		running bool
		pending bool
		done    = make(chan error, 1)
	)
	start := func(trigger string) {
		running = true
		w.logger.Info("starting optimize run", logging.String("trigger", trigger))
		go func() { done <- w.run(ctx) }()
	}
	finish := func() {
		if timer != nil {
			timer.Stop()
		}
		if running {
			<-done
		}
	}

	if w.opts.InitialRun {
		start("startup")
	}
	for {
		select {
		case <-ctx.Done():
			finish()
			return nil
		case c, ok := <-changes:
			if !ok {
				finish()
				return nil
			}
			if !relevant(c) {
				continue
			}
			w.logger.Debug("image change observed", logging.String(logging.FieldImage, c.path))
			if timer == nil {
				timer = time.NewTimer(w.opts.Debounce)
			} else {
				timer.Reset(w.opts.Debounce)
			}
			timerC = timer.C
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logging.WarnWithContext(w.logger, "filesystem watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check inotify limits (fs.inotify.max_user_watches)"),
				logging.String(logging.FieldImpact, "some changes may be missed until the next run"))
		case <-timerC:
			timerC = nil
			if running {
				pending = true
				continue
			}
			start("change")
		case err := <-done:
			running = false
			if err != nil && !errors.Is(err, context.Canceled) {
				logging.WarnWithContext(w.logger, "optimize run failed", "watch_run_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "fix the error; the next change retries"),
					logging.String(logging.FieldImpact, "manifest not updated for this change"))
			}
			if pending {
				pending = false
				start("queued change")
			}
		}
	}
}
