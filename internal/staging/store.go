package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
)

var ErrStorage = errors.New("transient storage failure")

// Store writes uploads to uniquely named transient files under Dir.
type Store struct {
	Dir    string
	Logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create staging directory %s: %v", ErrStorage, dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{Dir: dir, Logger: logger}, nil
}

// Stage copies payload into a new file whose name ends in "."+ext and returns
// its path. Nothing is left on disk when Stage fails.
func (s *Store) Stage(payload io.Reader, ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		return "", fmt.Errorf("%w: extension is required", ErrStorage)
	}
	if strings.ContainsAny(ext, `/\`) {
		return "", fmt.Errorf("%w: invalid extension %q", ErrStorage, ext)
	}

	f, err := os.CreateTemp(s.Dir, "upload-*."+ext)
	if err != nil {
		return "", fmt.Errorf("%w: create transient file: %v", ErrStorage, err)
	}
	path := f.Name()

	success := false
	defer func() {
		_ = f.Close()
		if !success {
			_ = os.Remove(path)
		}
	}()

	if payload != nil {
		if _, err := io.Copy(f, payload); err != nil {
			return "", fmt.Errorf("%w: write transient file: %v", ErrStorage, err)
		}
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("%w: sync transient file: %v", ErrStorage, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close transient file: %v", ErrStorage, err)
	}

	success = true
	s.log().Debug("staged upload", zap.String("path", path))
	return path, nil
}

// Remove deletes path. A file that is already gone is not an error.
func (s *Store) Remove(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("%w: remove %s: %v", ErrStorage, path, err)
}

func (s *Store) NewScope() *Scope {
	return &Scope{remove: s.Remove, logger: s.log()}
}

func (s *Store) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
