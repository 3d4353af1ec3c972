// Package storage persists the session credential and the cached user
// profile in a single state file, the durable client-side analogue of
// the two browser storage keys the portal used historically.
package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotPresent is returned when no credential is stored.
var ErrNotPresent = errors.New("no credential present")

// state is the on-disk layout. Both keys live in one file so that
// Clear removes them atomically: a reader sees either both or neither.
type state struct {
	Credential string          `json:"recruitment_jwt,omitempty"`
	Profile    json.RawMessage `json:"recruitment_user,omitempty"`
}

// Store is a file-backed credential store. All operations are
// synchronous and idempotent. Validation of the credential itself is
// the session manager's responsibility, not the store's.
type Store struct {
	mu   sync.Mutex
	path string
}

// New creates a Store persisting to the given file path. The parent
// directory is created on first write, not here.
func New(path string) *Store {
	return &Store{path: path}
}

// Get returns the stored credential, or ErrNotPresent.
func (s *Store) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil || st.Credential == "" {
		return "", ErrNotPresent
	}
	return st.Credential, nil
}

// Set stores the credential, replacing any previous one. The cached
// profile is preserved.
func (s *Store) Set(credential string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.read()
	st.Credential = credential
	return s.write(st)
}

// Profile returns the cached user-profile blob, or ErrNotPresent.
func (s *Store) Profile() (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.read()
	if err != nil || len(st.Profile) == 0 {
		return nil, ErrNotPresent
	}
	return st.Profile, nil
}

// SetProfile stores the cached user-profile blob alongside the credential.
func (s *Store) SetProfile(profile json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, _ := s.read()
	st.Profile = profile
	return s.write(st)
}

// Clear removes the credential and the cached profile together.
// Clearing an already-empty store is a no-op.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// IsPresent reports whether a credential is currently stored.
func (s *Store) IsPresent() bool {
	_, err := s.Get()
	return err == nil
}

func (s *Store) read() (state, error) {
	var st state
	b, err := os.ReadFile(s.path)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return state{}, err
	}
	return st, nil
}

// write replaces the state file via a temp file and rename so no
// reader ever observes a partially written state.
func (s *Store) write(st state) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}

	b, err := json.Marshal(st)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".credstore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
