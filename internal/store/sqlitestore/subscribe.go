package sqlitestore

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
)

type listFunc func(ctx context.Context, userID string) ([]models.TimeLog, error)

// hub fans change notifications out to subscribers. Writes made through
// this Store notify the affected user directly; writes from other processes
// are picked up by watching the database file and refresh everyone.
type hub struct {
	list      listFunc
	watchPath string
	logger    *slog.Logger

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	watcher *fsnotify.Watcher
	closed  bool
}

type subscriber struct {
	userID string
	fn     func([]models.TimeLog, error)
	wake   chan struct{}
	cancel context.CancelFunc
}

func newHub(list listFunc, watchPath string, logger *slog.Logger) *hub {
	return &hub{
		list:      list,
		watchPath: watchPath,
		logger:    logger,
		subs:      map[*subscriber]struct{}{},
	}
}

func (h *hub) subscribe(ctx context.Context, userID string, fn func([]models.TimeLog, error)) (store.Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	sub := &subscriber{
		userID: userID,
		fn:     fn,
		wake:   make(chan struct{}, 1),
		cancel: cancel,
	}
	// Deliver the initial snapshot.
	sub.wake <- struct{}{}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		cancel()
		return nil, store.Unavailable("subscribe", context.Canceled)
	}
	h.subs[sub] = struct{}{}
	h.ensureWatcherLocked()
	h.mu.Unlock()

	go h.run(ctx, sub)
	return sub, nil
}

func (s *subscriber) Cancel() {
	s.cancel()
}

func (s *subscriber) poke() {
	select {
	case s.wake <- struct{}{}:
	default:
		// A refresh is already pending.
	}
}

func (h *hub) run(ctx context.Context, sub *subscriber) {
	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.wake:
			logs, err := h.list(ctx, sub.userID)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				// The next write or watcher event retries the read.
				h.logger.Error("refresh subscription", "user", sub.userID, "error", err)
				sub.fn(nil, store.Unavailable("refresh subscription", err))
				continue
			}
			sub.fn(logs, nil)
		}
	}
}

func (h *hub) notify(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if sub.userID == userID {
			sub.poke()
		}
	}
}

func (h *hub) notifyAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		sub.poke()
	}
}

// ensureWatcherLocked starts the file watcher on first subscription. A
// failure only disables cross-process updates.
func (h *hub) ensureWatcherLocked() {
	if h.watchPath == "" || h.watcher != nil {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		h.logger.Warn("create database watcher", "error", err)
		return
	}
	// Watch the directory: sqlite replaces the -wal and -shm files.
	if err := watcher.Add(filepath.Dir(h.watchPath)); err != nil {
		h.logger.Warn("watch database directory", "path", h.watchPath, "error", err)
		watcher.Close()
		return
	}
	h.watcher = watcher
	go h.watch(watcher)
}

func (h *hub) watch(watcher *fsnotify.Watcher) {
	base := filepath.Base(h.watchPath)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			name := filepath.Base(event.Name)
			if name != base && name != base+"-wal" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				h.notifyAll()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Warn("database watcher", "error", err)
		}
	}
}

func (h *hub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for sub := range h.subs {
		sub.cancel()
	}
	if h.watcher != nil {
		h.watcher.Close()
		h.watcher = nil
	}
}
