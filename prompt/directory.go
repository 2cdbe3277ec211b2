package prompt

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/hupe1980/agentchat/logging"
)

// Extensions are the file suffixes recognised as prompt files, in lookup order.
var Extensions = []string{".md", ".txt"}

// DirectoryOptions configures a Directory source.
type DirectoryOptions struct {
	Logger logging.Logger
	// OnReload is called after a prompt file changed and the cache was updated.
	OnReload func(agentID string)
}

// Directory serves "<dir>/<agentID>.md" (or .txt) files. Prompts are read
// once and cached; Watch keeps the cache in sync with the directory.
type Directory struct {
	dir   string
	opts  DirectoryOptions
	mu    sync.RWMutex
	cache map[string]string
	gen   uint64 // bumped on every invalidation
	load  func(agentID string) (string, error)

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDirectory creates a source reading prompt files from dir.
func NewDirectory(dir string, optFns ...func(o *DirectoryOptions)) (*Directory, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("prompt directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("prompt directory: %s is not a directory", dir)
	}

	opts := DirectoryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	d := &Directory{dir: dir, opts: opts, cache: make(map[string]string)}
	d.load = d.read
	return d, nil
}

// PromptFor implements Source.
func (d *Directory) PromptFor(agentID string) (string, error) {
	d.mu.RLock()
	p, ok := d.cache[agentID]
	gen := d.gen
	d.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := d.load(agentID)
	if err != nil {
		return "", err
	}

	// an invalidation during the read means p may already be stale
	d.mu.Lock()
	if d.gen == gen {
		d.cache[agentID] = p
	}
	d.mu.Unlock()
	return p, nil
}

func (d *Directory) read(agentID string) (string, error) {
	if agentID == "" || strings.ContainsAny(agentID, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, agentID)
	}
	for _, ext := range Extensions {
		data, err := os.ReadFile(filepath.Join(d.dir, agentID+ext))
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read prompt for %s: %w", agentID, err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, agentID)
}

// Watch starts reloading changed prompt files in the background until ctx is
// done or Close is called. Calling Watch twice is a no-op.
func (d *Directory) Watch(ctx context.Context) error {
	d.watchMu.Lock()
	defer d.watchMu.Unlock()
	if d.watcher != nil {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(d.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", d.dir, err)
	}

	d.watcher = w
	d.done = make(chan struct{})
	go d.run(ctx, w, d.done)

	d.opts.Logger.Info("prompt.watch.start", "dir", d.dir)
	return nil
}

// Close stops the watcher and waits for its goroutine to exit.
func (d *Directory) Close() error {
	d.watchMu.Lock()
	w, done := d.watcher, d.done
	d.watcher, d.done = nil, nil
	d.watchMu.Unlock()

	if w == nil {
		return nil
	}
	err := w.Close()
	<-done
	return err
}

func (d *Directory) run(ctx context.Context, w *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			d.handle(event)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			d.opts.Logger.Warn("prompt.watch.error", "error", err)
		}
	}
}

func (d *Directory) handle(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	ext := filepath.Ext(base)
	if !isPromptExt(ext) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	agentID := strings.TrimSuffix(base, ext)

	d.mu.Lock()
	delete(d.cache, agentID)
	d.gen++
	d.mu.Unlock()

	d.opts.Logger.Debug("prompt.reload", "agent.id", agentID, "op", event.Op.String())
	if d.opts.OnReload != nil {
		d.opts.OnReload(agentID)
	}
}

func isPromptExt(ext string) bool {
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}
