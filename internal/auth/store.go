package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"

	"folio/internal/fileutil"
)

// ErrNoToken is returned when no credentials have been stored yet.
var ErrNoToken = errors.New("no stored credentials")

type storedToken struct {
	AccessToken  string    `yaml:"access_token"`
	TokenType    string    `yaml:"token_type,omitempty"`
	RefreshToken string    `yaml:"refresh_token,omitempty"`
	Expiry       time.Time `yaml:"expiry,omitempty"`
}

// TokenStore persists a single OAuth token on disk.
type TokenStore struct {
	path string
	lock *flock.Flock
}

// NewTokenStore returns a store backed by path.
func NewTokenStore(path string) *TokenStore {
	return &TokenStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the token file location.
func (s *TokenStore) Path() string {
	return s.path
}

// Load reads the stored token.
func (s *TokenStore) Load() (*oauth2.Token, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	if err := s.lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock token store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("read token: %w", err)
	}
	var stored storedToken
	if err := yaml.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("parse token %s: %w", s.path, err)
	}
	if stored.AccessToken == "" && stored.RefreshToken == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{
		AccessToken:  stored.AccessToken,
		TokenType:    stored.TokenType,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.Expiry,
	}, nil
}

// Save writes token atomically with owner-only permissions.
func (s *TokenStore) Save(token *oauth2.Token) error {
	if token == nil {
		return errors.New("save token: nil token")
	}
	if err := s.ensureDir(); err != nil {
		return err
	}
	data, err := yaml.Marshal(storedToken{
		AccessToken:  token.AccessToken,
		TokenType:    token.TokenType,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	})
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock token store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	return fileutil.WriteFileAtomic(s.path, data, 0o600)
}

// Clear deletes the stored token. A missing token is not an error.
func (s *TokenStore) Clear() error {
	if err := s.ensureDir(); err != nil {
		return err
	}
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("lock token store: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove token: %w", err)
	}
	return nil
}

func (s *TokenStore) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	return nil
}
