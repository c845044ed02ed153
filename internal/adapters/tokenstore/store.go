package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/domain/shared"
)

// FileStore persists the session to a JSON file, the headless analog of the
// browser's persistent storage: one logical session per profile, shared by
// every component in the process and visible to other processes using the
// same path.
type FileStore struct {
	path   string
	mu     sync.RWMutex
	cached shared.Session
	logger zerolog.Logger
}

type Params struct {
	Path   string
	Logger zerolog.Logger
}

// New opens (or initializes) the store at the given path.
func New(params Params) (*FileStore, error) {
	s := &FileStore{
		path:   params.Path,
		logger: params.Logger.With().Str("component", "token_store").Logger(),
	}
	if err := os.MkdirAll(filepath.Dir(params.Path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token store directory: %w", err)
	}
	session, err := s.read()
	if err != nil {
		return nil, err
	}
	s.cached = session
	return s, nil
}

func (s *FileStore) read() (shared.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return shared.Session{}, nil
		}
		return shared.Session{}, fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	var session shared.Session
	if err := json.Unmarshal(data, &session); err != nil {
		// A corrupt store behaves like a logged-out one.
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Discarding unreadable session file")
		return shared.Session{}, nil
	}
	return session, nil
}

func (s *FileStore) write(session shared.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

// Session returns the current stored session.
func (s *FileStore) Session() shared.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

// Access returns the stored access token, or "" when absent.
func (s *FileStore) Access() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached.Access
}

// RefreshToken returns the stored refresh token, or "" when absent.
func (s *FileStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached.Refresh
}

// SetAccess replaces the access token in place. Concurrent refreshes both
// land here; the last write wins and either token is valid.
func (s *FileStore) SetAccess(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached.Access = token
	return s.write(s.cached)
}

// SetSession replaces the whole stored session.
func (s *FileStore) SetSession(session shared.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = session
	return s.write(session)
}

// Clear destroys the stored session.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = shared.Session{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}
	return nil
}

// reload re-reads the file and reports whether the session content changed,
// refreshing the in-memory copy. Used by the watcher.
func (s *FileStore) reload() (changed bool, session shared.Session) {
	current, err := s.read()
	if err != nil {
		return false, s.Session()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Token equality is what matters for change detection; profile fields
	// hold pointers and would compare unequal on every re-read.
	if current.Access == s.cached.Access && current.Refresh == s.cached.Refresh {
		return false, s.cached
	}
	s.cached = current
	return true, current
}
