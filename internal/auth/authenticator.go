// Package auth signs users in with Google through a loopback OAuth2 redirect
// and restricts access to an email allow-list.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// ErrDomainRejected is returned when the signed-in email is not on the
// allow-list. The session is cleared before it is returned.
var ErrDomainRejected = errors.New("sign-in rejected")

const callbackPath = "/oauth2callback"

// State mirrors what the UI needs: who is signed in, and whether the
// persisted session has been read yet.
type State struct {
	User    *Identity
	Loading bool
}

type Config struct {
	Provider Provider
	Allow    *AllowList
	Sessions *SessionFile
	Logger   *slog.Logger
	Clock    clock.Clock
}

type Authenticator struct {
	provider Provider
	allow    *AllowList
	sessions *SessionFile
	logger   *slog.Logger
	clock    clock.Clock

	mu    sync.Mutex
	state State
}

func New(cfg Config) *Authenticator {
	if cfg.Allow == nil {
		cfg.Allow = NewAllowList(nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Authenticator{
		provider: cfg.Provider,
		allow:    cfg.Allow,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		state:    State{Loading: true},
	}
}

func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Authenticator) setUser(id *Identity) {
	a.mu.Lock()
	a.state = State{User: id}
	a.mu.Unlock()
}

// rejection builds the user-facing error for an email outside the list.
func (a *Authenticator) rejection(email string) error {
	domains := a.allow.Domains()
	if len(domains) == 0 {
		return fmt.Errorf("%w: %s is not on the allow list", ErrDomainRejected, email)
	}
	return fmt.Errorf("%w: access restricted to %s emails", ErrDomainRejected, strings.Join(domains, ", "))
}

// Restore loads the persisted session. A session whose email no longer
// passes the allow-list is cleared.
func (a *Authenticator) Restore() (*Identity, error) {
	id, err := a.sessions.Load()
	if err != nil {
		a.setUser(nil)
		return nil, err
	}
	if id != nil && !a.allow.Member(id.Email) {
		a.logger.Warn("persisted session rejected by allow list", "email", id.Email)
		if err := a.sessions.Clear(); err != nil {
			return nil, err
		}
		a.setUser(nil)
		return nil, a.rejection(id.Email)
	}
	a.setUser(id)
	return id, nil
}

// Complete finishes a sign-in: it exchanges the code, checks the
// allow-list and persists the session. A rejected email signs the user out
// and leaves no session behind.
func (a *Authenticator) Complete(ctx context.Context, code, verifier, redirectURL string) (*Identity, error) {
	id, err := a.provider.Exchange(ctx, code, verifier, redirectURL)
	if err != nil {
		a.logger.Error("sign-in exchange failed", "error", err)
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if !a.allow.Member(id.Email) {
		a.logger.Warn("sign-in rejected", "email", id.Email)
		if err := a.sessions.Clear(); err != nil {
			return nil, err
		}
		a.setUser(nil)
		return nil, a.rejection(id.Email)
	}

	id.SignedIn = a.clock.Now().UTC()
	if err := a.sessions.Save(id); err != nil {
		return nil, err
	}
	a.setUser(id)
	a.logger.Info("signed in", "user", id.UserID, "email", id.Email)
	return id, nil
}

type loginResult struct {
	id  *Identity
	err error
}

// Login runs the browser flow: it serves the redirect on a random loopback
// port, calls open with the authorization URL and waits for the callback
// or ctx.
func (a *Authenticator) Login(ctx context.Context, open func(url string) error) (*Identity, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for oauth callback: %w", err)
	}
	redirectURL := fmt.Sprintf("http://%s%s", ln.Addr().String(), callbackPath)

	state := uuid.NewString()
	verifier := oauth2.GenerateVerifier()
	results := make(chan loginResult, 1)

	var once sync.Once
	finish := func(r loginResult) {
		once.Do(func() { results <- r })
	}

	r := chi.NewRouter()
	r.Get(callbackPath, func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "Session state doesn't match callback state.", http.StatusBadRequest)
			return
		}
		if e := q.Get("error"); e != "" {
			http.Error(w, "Sign-in failed: "+e, http.StatusUnauthorized)
			finish(loginResult{err: fmt.Errorf("sign in: %s", e)})
			return
		}

		id, err := a.Complete(req.Context(), q.Get("code"), verifier, redirectURL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			finish(loginResult{err: err})
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Signed in as %s. You can close this window.\n", id.Email)
		finish(loginResult{id: id})
	})

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			finish(loginResult{err: fmt.Errorf("oauth callback server: %w", err)})
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	authURL := a.provider.AuthCodeURL(state, verifier, redirectURL)
	a.logger.Debug("waiting for oauth callback", "redirect", redirectURL)
	if err := open(authURL); err != nil {
		return nil, fmt.Errorf("open browser: %w", err)
	}

	select {
	case res := <-results:
		return res.id, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Logout clears the persisted session.
func (a *Authenticator) Logout() error {
	if err := a.sessions.Clear(); err != nil {
		return err
	}
	a.setUser(nil)
	a.logger.Info("signed out")
	return nil
}
