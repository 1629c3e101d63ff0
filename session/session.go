// Package session persists the logged-in user's bearer credential
// between runs. Chat history is deliberately not persisted.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Session is the current account: the display name entered at login and
// the bearer token issued by the backend. The token is opaque; the name
// is never derived from it.
type Session struct {
	Name  string `json:"name"`
	Token string `json:"access_token"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

// Path resolves the single file the credential lives in.
func Path() (string, error) {
	if env := os.Getenv("LIBRARIAN_SESSION_FILE"); env != "" {
		return env, nil
	}
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config dir: %w", err)
	}
	return filepath.Join(configDir, "librarian", "session.json"), nil
}

// Load reads the persisted session. A missing file is not an error: it
// returns (nil, nil), meaning nobody is logged in.
func Load() (*Session, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.Token == "" {
		return nil, nil
	}
	return &s, nil
}

// Save persists the session, creating the directory if needed.
func (s *Session) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Clear removes the persisted credential. Clearing an absent session is
// a no-op.
func Clear() error {
	path, err := Path()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
