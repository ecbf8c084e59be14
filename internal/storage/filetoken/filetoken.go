package filetoken

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Store keeps the bearer token in a small JSON file ({"token": "..."}) readable only by the owner.
type Store struct {
	path string
}

type fileBody struct {
	Token string `json:"token"`
}

// DefaultPath is ~/.parceldesk/token.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".parceldesk", "token")
	}
	return filepath.Join(home, ".parceldesk", "token")
}

func New(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

func (s *Store) Load(_ context.Context) (string, bool, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "read token file")
	}
	var fb fileBody
	if err := json.Unmarshal(b, &fb); err != nil {
		return "", false, errors.Wrap(err, "decode token file")
	}
	return fb.Token, fb.Token != "", nil
}

func (s *Store) Save(_ context.Context, token string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "create token dir")
	}
	b, err := json.Marshal(fileBody{Token: token})
	if err != nil {
		return errors.Wrap(err, "encode token file")
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "write token file")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrap(err, "replace token file")
	}
	return nil
}

func (s *Store) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "remove token file")
	}
	return nil
}
