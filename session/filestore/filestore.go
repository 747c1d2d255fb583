// Package filestore is the durable session.Store. It keeps the token and the
// cached user record in a single sealed file under the data folder so a
// restart of the client picks up the previous session.
//
// The file is sealed with NaCl secretbox under a per-install random key held
// next to it with 0600 permissions. This keeps the bearer token out of casual
// reach on shared machines; it is not a defense against an attacker who can
// read the key file.
package filestore

import (
	"crypto/rand"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/nacl/secretbox"

	"github.com/internhub/go-portal-gate/session"
)

const (
	sessionFileName = "session.dat"
	keyFileName     = "session.key"
	nonceSize       = 24
	keySize         = 32
)

var _ session.Store = (*Store)(nil)

// envelope is the serialized form of the two session slots.
type envelope struct {
	Token string          `json:"token"`
	User  json.RawMessage `json:"user,omitempty"`
}

// Store persists sessions under a data directory.
type Store struct {
	dir    string
	logger zerolog.Logger
	lock   sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for soft-failure reporting.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store rooted at dir, creating the directory if needed.
func New(dir string, options ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("[filestore.New] data directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] MkdirAll")
	}

	s := &Store{
		dir:    dir,
		logger: zerolog.Nop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Save writes both session slots, sealing them under the install key.
func (s *Store) Save(token string, user *session.User) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	env := envelope{Token: token}
	if user != nil {
		raw, err := json.Marshal(user)
		if err != nil {
			return errors.Wrap(err, "[Store.Save] marshal user")
		}
		env.User = raw
	}

	plaintext, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "[Store.Save] marshal envelope")
	}

	key, err := s.loadOrCreateKey()
	if err != nil {
		return errors.Wrap(err, "[Store.Save] key")
	}

	sealed, err := seal(plaintext, key)
	if err != nil {
		return errors.Wrap(err, "[Store.Save] seal")
	}

	if err := os.WriteFile(s.sessionPath(), sealed, 0o600); err != nil {
		return errors.Wrap(err, "[Store.Save] WriteFile")
	}
	return nil
}

// Load returns the persisted slots. Corrupt state (unreadable seal, bad
// envelope, undecodable user record) is cleared and reported absent.
func (s *Store) Load() (string, *session.User, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	sealed, err := os.ReadFile(s.sessionPath())
	if os.IsNotExist(err) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, errors.Wrap(err, "[Store.Load] ReadFile")
	}

	key, err := s.loadKey()
	if err != nil {
		// Session file without a readable key cannot be recovered.
		s.logger.Warn().Err(err).Msg("session key unreadable, discarding stored session")
		return "", nil, s.clearLocked()
	}

	plaintext, ok := open(sealed, key)
	if !ok {
		s.logger.Warn().Msg("stored session failed to unseal, discarding")
		return "", nil, s.clearLocked()
	}

	var env envelope
	if err := json.Unmarshal(plaintext, &env); err != nil {
		s.logger.Warn().Err(err).Msg("stored session envelope malformed, discarding")
		return "", nil, s.clearLocked()
	}

	var user *session.User
	if len(env.User) > 0 {
		user = &session.User{}
		if err := json.Unmarshal(env.User, user); err != nil {
			s.logger.Warn().Err(err).Msg("stored user record malformed, discarding session")
			return "", nil, s.clearLocked()
		}
	}

	return env.Token, user, nil
}

// Clear removes both slots. Removing an already-absent session is not an
// error.
func (s *Store) Clear() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.clearLocked()
}

func (s *Store) clearLocked() error {
	if err := os.Remove(s.sessionPath()); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[Store.Clear] Remove")
	}
	return nil
}

func (s *Store) sessionPath() string {
	return filepath.Join(s.dir, sessionFileName)
}

func (s *Store) keyPath() string {
	return filepath.Join(s.dir, keyFileName)
}

func (s *Store) loadKey() (*[keySize]byte, error) {
	raw, err := os.ReadFile(s.keyPath())
	if err != nil {
		return nil, errors.Wrap(err, "[Store.loadKey] ReadFile")
	}
	if len(raw) != keySize {
		return nil, errors.Errorf("[Store.loadKey] key file has %d bytes, want %d", len(raw), keySize)
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

func (s *Store) loadOrCreateKey() (*[keySize]byte, error) {
	if key, err := s.loadKey(); err == nil {
		return key, nil
	}

	var key [keySize]byte
	if _, err := rand.Read(key[:]); err != nil {
		return nil, errors.Wrap(err, "[Store.loadOrCreateKey] rand.Read")
	}
	if err := os.WriteFile(s.keyPath(), key[:], 0o600); err != nil {
		return nil, errors.Wrap(err, "[Store.loadOrCreateKey] WriteFile")
	}
	return &key, nil
}

func seal(plaintext []byte, key *[keySize]byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, errors.Wrap(err, "[seal] rand.Read")
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, key), nil
}

func open(sealed []byte, key *[keySize]byte) ([]byte, bool) {
	if len(sealed) < nonceSize {
		return nil, false
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	return secretbox.Open(nil, sealed[nonceSize:], &nonce, key)
}
