package platform

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

const appDirName = "speech2text"

// DefaultStagingDirFor picks where transient uploads live. Linux prefers the
// per-user runtime directory; everything else uses the temp directory.
func DefaultStagingDirFor(goos, tempDir, xdgRuntimeDir string) (string, error) {
	if goos == "linux" && xdgRuntimeDir != "" {
		return filepath.Join(xdgRuntimeDir, appDirName), nil
	}

	if tempDir == "" {
		return "", errors.New("temp directory is empty")
	}
	return filepath.Join(tempDir, appDirName), nil
}

func ResolveStagingDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}
	return DefaultStagingDirFor(runtime.GOOS, os.TempDir(), os.Getenv("XDG_RUNTIME_DIR"))
}
