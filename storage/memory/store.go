// Package memory holds the in-memory user database.
package memory

import (
	"errors"
	"strings"
	"sync"
)

var (
	ErrUserExists    = errors.New("user already exists")
	ErrNoSuchUser    = errors.New("user does not exist")
	ErrWrongPassword = errors.New("incorrect password")
)

// Hasher derives and verifies password secrets. The store keeps only the
// derived secret, never the raw password.
type Hasher interface {
	Hash(password string) ([]byte, error)
	Verify(secret []byte, password string) bool
}

// Record is one credential entry. Username keeps the case the user
// registered with; identity is case-insensitive.
type Record struct {
	Username string
	Secret   []byte
}

// Store is a mutex-guarded credential map keyed by lowercase username.
// Check-then-insert runs under one lock, so two concurrent registrations
// for the same name cannot both succeed.
type Store struct {
	mx     *sync.Mutex
	hasher Hasher
	users  map[string]Record
}

func NewStore(hasher Hasher) *Store {
	return &Store{
		mx:     &sync.Mutex{},
		hasher: hasher,
		users:  make(map[string]Record),
	}
}

// Register creates a credential record. Hashing happens outside the lock,
// uniqueness check and insert inside it.
func (s *Store) Register(username, password string) error {
	secret, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	key := strings.ToLower(username)
	s.mx.Lock()
	defer s.mx.Unlock()

	if _, ok := s.users[key]; ok {
		return ErrUserExists
	}
	s.users[key] = Record{
		Username: username,
		Secret:   secret,
	}
	return nil
}

// Authenticate verifies a password against the stored secret. Verification
// runs outside the lock; secrets are never mutated after registration.
func (s *Store) Authenticate(username, password string) error {
	s.mx.Lock()
	rec, ok := s.users[strings.ToLower(username)]
	s.mx.Unlock()

	if !ok {
		return ErrNoSuchUser
	}
	if !s.hasher.Verify(rec.Secret, password) {
		return ErrWrongPassword
	}
	return nil
}

// Remove deletes a credential record.
func (s *Store) Remove(username string) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	key := strings.ToLower(username)
	if _, ok := s.users[key]; !ok {
		return ErrNoSuchUser
	}
	delete(s.users, key)
	return nil
}

func (s *Store) Len() int {
	s.mx.Lock()
	defer s.mx.Unlock()
	return len(s.users)
}

// Snapshot returns a copy of all records. Backup hook for an external
// persistence collaborator; the store itself never touches disk.
func (s *Store) Snapshot() []Record {
	s.mx.Lock()
	defer s.mx.Unlock()

	out := make([]Record, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec)
	}
	return out
}

// Restore loads records produced by Snapshot, replacing current contents.
func (s *Store) Restore(records []Record) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.users = make(map[string]Record, len(records))
	for _, rec := range records {
		s.users[strings.ToLower(rec.Username)] = rec
	}
}
