package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Identity is the signed-in user as persisted between runs.
type Identity struct {
	UserID   string    `toml:"user_id"`
	Email    string    `toml:"email"`
	Name     string    `toml:"name"`
	Picture  string    `toml:"picture,omitempty"`
	SignedIn time.Time `toml:"signed_in"`
}

// SessionFile stores the current Identity as TOML.
type SessionFile struct {
	path string
}

func NewSessionFile(path string) *SessionFile {
	return &SessionFile{path: path}
}

func (f *SessionFile) Path() string {
	return f.path
}

// Load returns nil without error when nobody is signed in.
func (f *SessionFile) Load() (*Identity, error) {
	var id Identity
	if _, err := toml.DecodeFile(f.path, &id); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if id.UserID == "" {
		return nil, nil
	}
	return &id, nil
}

func (f *SessionFile) Save(id *Identity) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	defer file.Close()

	if err := toml.NewEncoder(file).Encode(id); err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return nil
}

// Clear removes the session. Clearing a missing session is not an error.
func (f *SessionFile) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}
