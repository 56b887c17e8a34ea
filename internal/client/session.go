package client

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Session is the logged-in user of the terminal client, kept in a YAML file
// between invocations.
type Session struct {
	Username   string    `yaml:"username"`
	LoggedInAt time.Time `yaml:"logged_in_at"`
}

func (s Session) LoggedIn() bool {
	return s.Username != ""
}

// DefaultSessionPath is ~/.quizbattle/session.yaml, or a file in the working
// directory when the home directory is unknown.
func DefaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quizbattle-session.yaml"
	}
	return filepath.Join(home, ".quizbattle", "session.yaml")
}

// LoadSession reads the session at path. A missing file is an empty session.
func LoadSession(path string) (Session, error) {
	var s Session

	b, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read session: %w", err)
	}

	if err := yaml.Unmarshal(b, &s); err != nil {
		return Session{}, fmt.Errorf("decode session %s: %w", path, err)
	}

	return s, nil
}

func (s Session) Save(path string) error {
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	return nil
}

// ClearSession removes the session at path. Clearing a missing session is not an error.
func ClearSession(path string) error {
	if err := os.Remove(path); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
