package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Session is the signed-in state of one client. It is passed explicitly to
// the API client; nothing else holds credentials.
type Session struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Username     string `json:"username"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Token != ""
}

func (s *Session) Clear() {
	*s = Session{}
}

// SessionFile persists a Session between CLI invocations.
type SessionFile struct {
	Path string
}

func DefaultSessionFile() (SessionFile, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return SessionFile{}, fmt.Errorf("locate config dir: %w", err)
	}
	return SessionFile{Path: filepath.Join(dir, "taskify", "session.json")}, nil
}

// Load returns an empty session when nothing has been saved yet.
func (f SessionFile) Load() (*Session, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (f SessionFile) Save(s *Session) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (f SessionFile) Remove() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
