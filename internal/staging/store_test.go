package staging

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "staging"), nil)
	require.NoError(t, err)
	return store
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func TestStageRoundTripsBytes(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	payload := []byte{0x00, 0xff, 'R', 'I', 'F', 'F', 0x10, '\n', '\r'}

	path, err := store.Stage(bytes.NewReader(payload), "WAV")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, ".wav"))
	require.Equal(t, store.Dir, filepath.Dir(path))

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, payload, onDisk)
}

func TestStageCreatesUniquePaths(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	first, err := store.Stage(strings.NewReader("a"), "mp3")
	require.NoError(t, err)
	second, err := store.Stage(strings.NewReader("b"), "mp3")
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestStageRejectsEmptyOrUnsafeExtension(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Stage(strings.NewReader("x"), "")
	require.ErrorIs(t, err, ErrStorage)

	_, err = store.Stage(strings.NewReader("x"), "../etc")
	require.ErrorIs(t, err, ErrStorage)
	require.Empty(t, listDir(t, store.Dir))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStageRemovesPartialFileOnWriteFailure(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)

	_, err := store.Stage(io.MultiReader(strings.NewReader("partial"), failingReader{}), "mp4")
	require.ErrorIs(t, err, ErrStorage)
	require.Contains(t, err.Error(), "connection reset")
	require.Empty(t, listDir(t, store.Dir))
}

func TestRemoveIgnoresMissingFile(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	require.NoError(t, store.Remove(filepath.Join(store.Dir, "never-created.mp3")))
	require.NoError(t, store.Remove(""))
}

func TestNewStoreDefaultsToTempDir(t *testing.T) {
	t.Parallel()

	store, err := NewStore("  ", nil)
	require.NoError(t, err)
	require.Equal(t, os.TempDir(), store.Dir)
}
