package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoSession means nothing has been saved yet.
var ErrNoSession = errors.New("no saved session")

// SessionStore persists a session and the API it belongs to as a private JSON file.
type SessionStore struct {
	path string
}

type savedSession struct {
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
}

// NewSessionStore stores the session at path.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// DefaultSessionStore uses backoffice/session.json under the user config dir.
func DefaultSessionStore() (*SessionStore, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locating config dir: %w", err)
	}
	return NewSessionStore(filepath.Join(dir, "backoffice", "session.json")), nil
}

// Path returns the file backing the store.
func (s *SessionStore) Path() string { return s.path }

// Save writes the session with 0600 permissions.
func (s *SessionStore) Save(baseURL string, session *Session) error {
	if !session.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(savedSession{BaseURL: baseURL, Token: session.Token()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}
	// WriteFile keeps the mode of an existing file.
	return os.Chmod(s.path, 0o600)
}

// Load returns the saved base URL and session.
func (s *SessionStore) Load() (string, *Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, ErrNoSession
		}
		return "", nil, err
	}
	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		return "", nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	if saved.Token == "" {
		return "", nil, ErrNoSession
	}
	return saved.BaseURL, NewSession(saved.Token), nil
}

// Clear removes the saved session. A missing file is not an error.
func (s *SessionStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
