package staging

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Scope owns the transient files of one invocation. Release removes every
// tracked file exactly once; later calls do nothing.
type Scope struct {
	mu       sync.Mutex
	paths    []string
	released bool

	remove func(path string) error
	logger *zap.Logger
}

func (s *Scope) Track(path string) {
	if path == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.paths = append(s.paths, path)
}

func (s *Scope) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

// Release removes tracked files in reverse order of creation. Failures are
// logged and returned joined; they never stop the remaining removals.
func (s *Scope) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	logger := s.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for i := len(paths) - 1; i >= 0; i-- {
		if err := s.remove(paths[i]); err != nil {
			logger.Warn("failed to remove transient file", zap.String("path", paths[i]), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		logger.Debug("removed transient file", zap.String("path", paths[i]))
	}

	return errors.Join(errs...)
}
