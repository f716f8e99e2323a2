// Package inbox imports CSV files dropped into a watched directory.
//
// A file is imported once writes to it have been quiet for the settle
// window. On success it is moved to Uploaded/; a file that cannot be
// imported is moved to Failed/ so it is not retried on every restart.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/patrimonio/internal/core"
)

// Subdirectories of the watched directory.
const (
	UploadedDir = "Uploaded"
	FailedDir   = "Failed"
)

// Importer replaces the session items with decoded CSV text, waiting for
// any import already in progress.
type Importer interface {
	ImportWait(ctx context.Context, text string) (int, error)
}

// Options configures a Watcher.
type Options struct {
	Dir      string
	Encoding string

	// Settle is the quiet period after the last write (default core.DefaultDebounce).
	Settle time.Duration

	// Timeout bounds a single import (default 2m).
	Timeout time.Duration
}

// Watcher watches Options.Dir and imports CSV files as they arrive.
type Watcher struct {
	importer Importer
	opts     Options
	fsw      *fsnotify.Watcher

	ready chan string
	done  chan struct{}

	mu      sync.Mutex
	pending map[string]*core.Debouncer[string]

	closeOnce sync.Once
}

// New creates the inbox directories and starts watching. Call Run to
// process files.
func New(importer Importer, opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("inbox: empty directory")
	}
	if opts.Settle <= 0 {
		opts.Settle = core.DefaultDebounce
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}
	for _, dir := range []string{opts.Dir, filepath.Join(opts.Dir, UploadedDir), filepath.Join(opts.Dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("inbox: create %s: %w", dir, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("inbox: create watcher: %w", err)
	}
	if err := fsw.Add(opts.Dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("inbox: watch %s: %w", opts.Dir, err)
	}

	return &Watcher{
		importer: importer,
		opts:     opts,
		fsw:      fsw,
		ready:    make(chan string),
		done:     make(chan struct{}),
		pending:  make(map[string]*core.Debouncer[string]),
	}, nil
}

// Run imports files already waiting in the directory, then processes new
// ones until ctx is cancelled or the watcher is closed. Imports run one at a
// time on the calling goroutine. The watcher is closed when Run returns, so
// files still settling are dropped.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()
	slog.Info("inbox watching", "dir", w.opts.Dir)
	w.scanExisting()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.schedule(event.Name)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("inbox watcher error", "error", err)

		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

// Close stops watching and discards files still settling.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		w.mu.Lock()
		for _, d := range w.pending {
			d.Stop()
		}
		w.mu.Unlock()
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) scanExisting() {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		slog.Warn("inbox scan failed", "dir", w.opts.Dir, "error", err)
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			w.schedule(filepath.Join(w.opts.Dir, e.Name()))
		}
	}
}

// schedule (re)starts the settle window for path.
func (w *Watcher) schedule(path string) {
	if !isCSV(path) || filepath.Dir(path) != filepath.Clean(w.opts.Dir) {
		return
	}

	w.mu.Lock()
	d, ok := w.pending[path]
	if !ok {
		d = core.NewDebouncer(w.opts.Settle, w.deliver)
		w.pending[path] = d
	}
	w.mu.Unlock()

	d.Trigger(path)
}

func (w *Watcher) deliver(path string) {
	select {
	case w.ready <- path:
	case <-w.done:
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()

	name := filepath.Base(path)
	logger := slog.With("file", name)

	n, err := w.importFile(ctx, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		logger.Warn("inbox import failed", "error", err, "reason", core.FormatUserError(err))
		if moveErr := moveInto(path, filepath.Join(w.opts.Dir, FailedDir)); moveErr != nil {
			logger.Error("inbox move failed", "error", moveErr)
		}
		return
	}

	logger.Info("inbox import complete", "items", n)
	if err := moveInto(path, filepath.Join(w.opts.Dir, UploadedDir)); err != nil {
		logger.Error("inbox move failed", "error", err)
	}
}

func (w *Watcher) importFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	text, err := core.DecodeText(f, w.opts.Encoding)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.opts.Timeout)
	defer cancel()
	return w.importer.ImportWait(ctx, text)
}

// moveInto moves path into dir, adding a timestamp if the name is taken.
func moveInto(path, dir string) error {
	name := filepath.Base(path)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		stamp := time.Now().Format("20060102-150405")
		dest = filepath.Join(dir, strings.TrimSuffix(name, ext)+"-"+stamp+ext)
	}
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("move %s: %w", name, err)
	}
	return nil
}

func isCSV(path string) bool {
	name := filepath.Base(path)
	return strings.EqualFold(filepath.Ext(name), ".csv") && !strings.HasPrefix(name, ".")
}
