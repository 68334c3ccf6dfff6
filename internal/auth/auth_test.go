package auth

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider skips the identity provider: its auth URL points straight
// back at the redirect with a code, and Exchange returns a fixed identity.
type fakeProvider struct {
	identity     *Identity
	err          error
	gotVerifier  string
	gotRedirect  string
	authVerifier string
}

func (f *fakeProvider) AuthCodeURL(state, verifier, redirectURL string) string {
	f.authVerifier = verifier
	return fmt.Sprintf("%s?state=%s&code=%s", redirectURL, url.QueryEscape(state), "test-code")
}

func (f *fakeProvider) Exchange(ctx context.Context, code, verifier, redirectURL string) (*Identity, error) {
	f.gotVerifier = verifier
	f.gotRedirect = redirectURL
	if f.err != nil {
		return nil, f.err
	}
	id := *f.identity
	return &id, nil
}

var signInTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestAuthenticator(t *testing.T, p Provider, allow []string) (*Authenticator, *SessionFile) {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(signInTime)
	sessions := NewSessionFile(filepath.Join(t.TempDir(), "session.toml"))
	return New(Config{
		Provider: p,
		Allow:    NewAllowList(allow),
		Sessions: sessions,
		Clock:    mock,
	}), sessions
}

func httpGet(target string) error {
	resp, err := http.Get(target)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}

func TestAllowList(t *testing.T) {
	a := NewAllowList([]string{"Example.com", " someone@other.org ", "", "@acme.io"})

	assert.True(t, a.Member("ada@example.com"))
	assert.True(t, a.Member("ADA@EXAMPLE.COM"))
	assert.True(t, a.Member("someone@other.org"))
	assert.True(t, a.Member("bob@acme.io"))

	assert.False(t, a.Member("bob@other.org"))
	assert.False(t, a.Member("eve@evilexample.com"))
	assert.False(t, a.Member("eve@sub.example.com"))
	assert.False(t, a.Member("example.com"))
	assert.False(t, a.Member("@example.com"))
	assert.False(t, a.Member("a@b@example.com"))

	assert.Equal(t, []string{"acme.io", "example.com"}, a.Domains())
}

func TestAllowList_EmptyAllowsAll(t *testing.T) {
	a := NewAllowList(nil)
	assert.True(t, a.Empty())
	assert.True(t, a.Member("anyone@anywhere.net"))
}

func TestSessionFile(t *testing.T) {
	f := NewSessionFile(filepath.Join(t.TempDir(), "nested", "session.toml"))

	got, err := f.Load()
	require.NoError(t, err)
	assert.Nil(t, got)

	want := &Identity{UserID: "sub-1", Email: "ada@example.com", Name: "Ada", SignedIn: signInTime}
	require.NoError(t, f.Save(want))

	info, err := os.Stat(f.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err = f.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.Email, got.Email)
	assert.True(t, want.SignedIn.Equal(got.SignedIn))

	require.NoError(t, f.Clear())
	require.NoError(t, f.Clear())
	got, err = f.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestComplete_Allowed(t *testing.T) {
	p := &fakeProvider{identity: &Identity{UserID: "sub-1", Email: "ada@example.com"}}
	a, sessions := newTestAuthenticator(t, p, []string{"example.com"})

	id, err := a.Complete(context.Background(), "code", "verifier", "http://127.0.0.1/cb")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id.UserID)
	assert.True(t, id.SignedIn.Equal(signInTime))

	st := a.State()
	assert.False(t, st.Loading)
	require.NotNil(t, st.User)
	assert.Equal(t, "ada@example.com", st.User.Email)

	persisted, err := sessions.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "sub-1", persisted.UserID)
}

func TestComplete_DomainRejected(t *testing.T) {
	p := &fakeProvider{identity: &Identity{UserID: "sub-2", Email: "eve@gmail.com"}}
	a, sessions := newTestAuthenticator(t, p, []string{"example.com"})

	// A previous session must not survive a rejected sign-in.
	require.NoError(t, sessions.Save(&Identity{UserID: "old", Email: "old@example.com"}))

	id, err := a.Complete(context.Background(), "code", "verifier", "http://127.0.0.1/cb")
	require.ErrorIs(t, err, ErrDomainRejected)
	assert.Nil(t, id)
	assert.Contains(t, err.Error(), "access restricted to example.com emails")

	assert.Nil(t, a.State().User)
	_, statErr := os.Stat(sessions.Path())
	assert.True(t, os.IsNotExist(statErr), "no session may be persisted")
}

func TestComplete_ExchangeError(t *testing.T) {
	p := &fakeProvider{err: assert.AnError}
	a, sessions := newTestAuthenticator(t, p, nil)

	_, err := a.Complete(context.Background(), "code", "verifier", "http://127.0.0.1/cb")
	assert.ErrorIs(t, err, assert.AnError)

	got, err := sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRestore(t *testing.T) {
	a, sessions := newTestAuthenticator(t, &fakeProvider{}, []string{"example.com"})
	assert.True(t, a.State().Loading)

	id, err := a.Restore()
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.False(t, a.State().Loading)

	require.NoError(t, sessions.Save(&Identity{UserID: "sub-1", Email: "ada@example.com"}))
	id, err = a.Restore()
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "sub-1", a.State().User.UserID)
}

func TestRestore_RejectsStaleDomain(t *testing.T) {
	a, sessions := newTestAuthenticator(t, &fakeProvider{}, []string{"example.com"})
	require.NoError(t, sessions.Save(&Identity{UserID: "sub-9", Email: "eve@gmail.com"}))

	_, err := a.Restore()
	assert.ErrorIs(t, err, ErrDomainRejected)

	got, err := sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLogin_LoopbackFlow(t *testing.T) {
	p := &fakeProvider{identity: &Identity{UserID: "sub-1", Email: "ada@example.com"}}
	a, _ := newTestAuthenticator(t, p, []string{"example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var opened string
	id, err := a.Login(ctx, func(u string) error {
		opened = u
		go func() { _ = httpGet(u) }()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "sub-1", id.UserID)

	assert.Contains(t, opened, "http://127.0.0.1:")
	assert.Contains(t, p.gotRedirect, callbackPath)
	assert.NotEmpty(t, p.gotVerifier)
	assert.Equal(t, p.authVerifier, p.gotVerifier)
}

func TestLogin_Rejected(t *testing.T) {
	p := &fakeProvider{identity: &Identity{UserID: "sub-2", Email: "eve@gmail.com"}}
	a, sessions := newTestAuthenticator(t, p, []string{"example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := a.Login(ctx, func(u string) error {
		go func() { _ = httpGet(u) }()
		return nil
	})
	assert.ErrorIs(t, err, ErrDomainRejected)

	got, err := sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLogin_Cancelled(t *testing.T) {
	a, _ := newTestAuthenticator(t, &fakeProvider{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := a.Login(ctx, func(string) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogout(t *testing.T) {
	p := &fakeProvider{identity: &Identity{UserID: "sub-1", Email: "ada@example.com"}}
	a, sessions := newTestAuthenticator(t, p, nil)

	_, err := a.Complete(context.Background(), "code", "v", "http://127.0.0.1/cb")
	require.NoError(t, err)

	require.NoError(t, a.Logout())
	assert.Nil(t, a.State().User)
	got, err := sessions.Load()
	require.NoError(t, err)
	assert.Nil(t, got)
}
