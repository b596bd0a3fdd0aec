package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fmueller/speech2text/internal/media"
	"github.com/fmueller/speech2text/internal/staging"
	"github.com/fmueller/speech2text/internal/transcription"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	calls    []string
	err      error
	noOutput bool
}

func (f *fakeExtractor) ExtractAudio(_ context.Context, videoPath string) (string, error) {
	f.calls = append(f.calls, videoPath)
	if f.err != nil {
		return "", f.err
	}
	audioPath := media.AudioPathFor(videoPath)
	if !f.noOutput {
		if err := os.WriteFile(audioPath, []byte("ID3 extracted"), 0o600); err != nil {
			return "", err
		}
	}
	return audioPath, nil
}

type fakeTranscriber struct {
	calls       []string
	credentials []string
	payloads    [][]byte
	transcript  string
	err         error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath, credential string) (string, error) {
	f.calls = append(f.calls, audioPath)
	f.credentials = append(f.credentials, credential)
	payload, err := os.ReadFile(audioPath)
	if err != nil {
		return "", err
	}
	f.payloads = append(f.payloads, payload)
	if f.err != nil {
		return "", f.err
	}
	return f.transcript, nil
}

type harness struct {
	dir         string
	extractor   *fakeExtractor
	transcriber *fakeTranscriber
	states      []State
	pipeline    *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		dir:         filepath.Join(t.TempDir(), "staging"),
		extractor:   &fakeExtractor{},
		transcriber: &fakeTranscriber{transcript: "hello world"},
	}

	store, err := staging.NewStore(h.dir, nil)
	require.NoError(t, err)

	h.pipeline, err = New(Options{
		Store:       store,
		Extractor:   h.extractor,
		Transcriber: h.transcriber,
		OnState: func(s State) {
			h.states = append(h.states, s)
		},
	})
	require.NoError(t, err)
	return h
}

func (h *harness) requireNoTransientFiles(t *testing.T) {
	t.Helper()

	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	require.Empty(t, entries, "transient files left behind")
}

func TestRunVideoExtractsThenTranscribesOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	result, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-test",
		Upload:     Upload{Name: "clip.mp4", Data: strings.NewReader("video bytes")},
	})
	require.NoError(t, err)

	require.Equal(t, "hello world", result.Transcript)
	require.True(t, result.Extracted)
	require.Equal(t, "transcription.txt", result.Download.FileName)
	require.Equal(t, []byte("hello world"), result.Download.Body)

	require.Len(t, h.extractor.calls, 1)
	require.True(t, strings.HasSuffix(h.extractor.calls[0], ".mp4"))
	require.Len(t, h.transcriber.calls, 1)
	require.True(t, strings.HasSuffix(h.transcriber.calls[0], ".mp3"))
	require.Equal(t, []byte("ID3 extracted"), h.transcriber.payloads[0])
	require.Equal(t, []string{"sk-test"}, h.transcriber.credentials)

	require.Equal(t, []State{
		StateIdle, StateStaged, StateClassifiedVideo, StateExtracted,
		StateTranscribing, StateDone, StateCleaned,
	}, h.states)
	h.requireNoTransientFiles(t)
}

func TestRunAudioTranscribesStagedFileDirectly(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	payload := []byte("RIFF\x00\x01WAVEfmt ")
	result, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-test",
		Upload:     Upload{Name: "note.WAV", Data: bytes.NewReader(payload)},
	})
	require.NoError(t, err)
	require.False(t, result.Extracted)

	require.Empty(t, h.extractor.calls)
	require.Len(t, h.transcriber.calls, 1)
	require.True(t, strings.HasSuffix(h.transcriber.calls[0], ".wav"))
	require.Equal(t, payload, h.transcriber.payloads[0])

	require.Equal(t, []State{
		StateIdle, StateStaged, StateClassifiedAudio,
		StateTranscribing, StateDone, StateCleaned,
	}, h.states)
	h.requireNoTransientFiles(t)
}

func TestRunRejectsUnsupportedFileType(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"data.txt", "noextension", "movie.mkv", `clip.x\y`, "clip.x/y", "trailing."} {
		h := newHarness(t)
		_, err := h.pipeline.Run(context.Background(), Request{
			Credential: "sk-test",
			Upload:     Upload{Name: name, Data: strings.NewReader("plain text")},
		})
		require.ErrorIsf(t, err, media.ErrUnsupportedFileType, "upload %q", name)
		require.Equal(t, KindUnsupportedFileType, KindOf(err))
		require.Empty(t, h.extractor.calls)
		require.Empty(t, h.transcriber.calls)
		require.Equal(t, StateFailed, h.states[len(h.states)-2])
		h.requireNoTransientFiles(t)
	}
}

func TestRunMissingCredentialCreatesNothing(t *testing.T) {
	t.Parallel()

	for _, credential := range []string{"", "   "} {
		h := newHarness(t)
		_, err := h.pipeline.Run(context.Background(), Request{
			Credential: credential,
			Upload:     Upload{Name: "note.wav", Data: strings.NewReader("audio")},
		})
		require.ErrorIs(t, err, ErrMissingCredential)
		require.Equal(t, []State{StateIdle}, h.states)
		require.Empty(t, h.transcriber.calls)
		h.requireNoTransientFiles(t)
	}
}

func TestRunNoAudioStreamSkipsTranscription(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.extractor.err = media.ErrNoAudioStream

	_, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-test",
		Upload:     Upload{Name: "silent.mov", Data: strings.NewReader("video")},
	})
	require.ErrorIs(t, err, media.ErrNoAudioStream)
	require.Equal(t, KindNoAudioStream, KindOf(err))
	require.Len(t, h.extractor.calls, 1)
	require.Empty(t, h.transcriber.calls)
	h.requireNoTransientFiles(t)
}

func TestRunTranscriptionFailureStillCleansUp(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transcriber.err = errors.New("connection refused")

	_, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-test",
		Upload:     Upload{Name: "clip.avi", Data: strings.NewReader("video")},
	})
	require.Error(t, err)
	require.Equal(t, KindTranscriptionFailure, KindOf(err))
	require.Len(t, h.transcriber.calls, 1)
	require.Equal(t, []State{
		StateIdle, StateStaged, StateClassifiedVideo, StateExtracted,
		StateTranscribing, StateFailed, StateCleaned,
	}, h.states)
	h.requireNoTransientFiles(t)
}

func TestRunInvalidCredentialIsReported(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.transcriber.err = transcription.ErrInvalidCredential

	_, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-wrong",
		Upload:     Upload{Name: "note.m4a", Data: strings.NewReader("audio")},
	})
	require.Equal(t, KindInvalidCredential, KindOf(err))
	h.requireNoTransientFiles(t)
}

func TestRunExtractedFileRemovedWhenAlreadyGone(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.extractor.noOutput = true

	_, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-test",
		Upload:     Upload{Name: "clip.mpeg", Data: strings.NewReader("video")},
	})
	// the transcriber cannot read the missing audio; the cleanup of the
	// never-written file must not replace that error
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
	h.requireNoTransientFiles(t)
}

func TestRunStorageFailureSkipsRemoteCall(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	require.NoError(t, os.RemoveAll(h.dir))

	_, err := h.pipeline.Run(context.Background(), Request{
		Credential: "sk-test",
		Upload:     Upload{Name: "note.wav", Data: strings.NewReader("audio")},
	})
	require.ErrorIs(t, err, staging.ErrStorage)
	require.Equal(t, KindStorageFailure, KindOf(err))
	require.Empty(t, h.transcriber.calls)
	require.NoDirExists(t, h.dir)
}

func TestNewRequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Options{})
	require.Error(t, err)

	store, err := staging.NewStore(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = New(Options{Store: store})
	require.Error(t, err)
	_, err = New(Options{Store: store, Extractor: &fakeExtractor{}})
	require.Error(t, err)
}
