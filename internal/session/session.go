// Package session holds the state of one signed-in user: who they are and
// the live view of their timers. It replaces any process-wide timer state.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emilianohg/cyclelog/internal/auth"
	"github.com/emilianohg/cyclelog/internal/models"
	"github.com/emilianohg/cyclelog/internal/store"
	"github.com/emilianohg/cyclelog/internal/timer"
)

var ErrClosed = errors.New("session closed")

// Update is one entry of the session feed: the latest snapshot, and the
// store failure that interrupted the feed, if any.
type Update struct {
	timer.Snapshot
	Err error
}

type Session struct {
	identity auth.Identity
	engine   *timer.Engine
	logger   *slog.Logger

	sub     store.Subscription
	updates chan Update

	mu      sync.RWMutex
	current timer.Snapshot
	closed  bool
}

// Open starts watching the user's logs. It returns once the first
// snapshot has arrived, the store has failed to produce it, or ctx is
// done.
func Open(ctx context.Context, identity auth.Identity, engine *timer.Engine, logger *slog.Logger) (*Session, error) {
	if identity.UserID == "" {
		return nil, errors.New("session requires a signed-in user")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Session{
		identity: identity,
		engine:   engine,
		logger:   logger.With("user", identity.UserID),
		updates:  make(chan Update, 1),
	}

	first := make(chan error, 1)
	var firstOnce sync.Once

	sub, err := engine.Watch(context.WithoutCancel(ctx), identity.UserID, func(snap timer.Snapshot, err error) {
		s.publish(snap, err)
		firstOnce.Do(func() { first <- err })
	})
	if err != nil {
		return nil, err
	}
	s.sub = sub

	select {
	case err := <-first:
		if err != nil {
			sub.Cancel()
			return nil, err
		}
	case <-ctx.Done():
		sub.Cancel()
		return nil, ctx.Err()
	}
	s.logger.Debug("session opened")
	return s, nil
}

// publish stores snap and offers it on Updates, replacing an unread one.
// On a store failure the last good snapshot is kept and sent with err.
func (s *Session) publish(snap timer.Snapshot, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		s.logger.Warn("timer feed interrupted", "error", err)
	} else {
		s.current = snap
	}

	select {
	case <-s.updates:
	default:
	}
	s.updates <- Update{Snapshot: s.current, Err: err}
}

func (s *Session) Identity() auth.Identity {
	return s.identity
}

func (s *Session) UserID() string {
	return s.identity.UserID
}

// Current returns the latest snapshot.
func (s *Session) Current() timer.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Active is shorthand for Current().Active.
func (s *Session) Active() *models.TimeLog {
	return s.Current().Active
}

// Updates delivers snapshots as they change, and store failures as they
// happen. Only the latest unread entry is kept. The channel is closed by
// Close.
func (s *Session) Updates() <-chan Update {
	return s.updates
}

func (s *Session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) Start(ctx context.Context, issue models.Issue) (string, error) {
	if s.isClosed() {
		return "", ErrClosed
	}
	return s.engine.StartTimer(ctx, s.identity.UserID, issue)
}

// Stop stops the running timer. It reports false when nothing was running.
func (s *Session) Stop(ctx context.Context) (bool, error) {
	if s.isClosed() {
		return false, ErrClosed
	}
	active, err := s.engine.ActiveTimer(ctx, s.identity.UserID)
	if err != nil {
		return false, err
	}
	if active == nil {
		return false, nil
	}
	return true, s.engine.StopTimer(ctx, active.ID)
}

// UpdateEstimate sets the estimate of the running timer.
func (s *Session) UpdateEstimate(ctx context.Context, estimate string) error {
	if s.isClosed() {
		return ErrClosed
	}
	active, err := s.engine.ActiveTimer(ctx, s.identity.UserID)
	if err != nil {
		return err
	}
	if active == nil {
		return fmt.Errorf("no timer is running")
	}
	return s.engine.UpdateEstimate(ctx, active.ID, estimate)
}

func (s *Session) SaveEstimates(ctx context.Context, estimates models.EstimateMap) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.engine.SaveEstimates(ctx, s.identity.UserID, estimates)
}

func (s *Session) LoadEstimates(ctx context.Context) (models.EstimateMap, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.engine.LoadEstimates(ctx, s.identity.UserID)
}

// Close cancels the subscription. It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.sub.Cancel()

	s.mu.Lock()
	close(s.updates)
	s.mu.Unlock()
	s.logger.Debug("session closed")
}
