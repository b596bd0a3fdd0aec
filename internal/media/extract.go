package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var ErrNoAudioStream = errors.New("the uploaded video does not have an audio stream")

type commandFunc func(ctx context.Context, name string, args ...string) (string, error)

type Extractor struct {
	FFmpegPath  string
	FFprobePath string
	Logger      *zap.Logger

	run commandFunc
}

func NewExtractor(ffmpegPath, ffprobePath string, logger *zap.Logger) *Extractor {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		Logger:      logger,
		run:         commandOutput,
	}
}

func (e *Extractor) Available() bool {
	return commandAvailable(e.FFmpegPath) && commandAvailable(e.FFprobePath)
}

// AudioPathFor returns videoPath with its extension replaced by ".mp3".
func AudioPathFor(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"
}

// ExtractAudio writes the first audio stream of the container at videoPath to
// an MP3 file next to it and returns the new path.
func (e *Extractor) ExtractAudio(ctx context.Context, videoPath string) (string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return "", errors.New("video path is required")
	}

	hasAudio, err := e.hasAudioStream(ctx, videoPath)
	if err != nil {
		return "", err
	}
	if !hasAudio {
		return "", ErrNoAudioStream
	}

	audioPath := AudioPathFor(videoPath)
	if audioPath == videoPath {
		return "", fmt.Errorf("refusing to overwrite %s with extracted audio", videoPath)
	}

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error", "-y",
		"-i", videoPath,
		"-vn",
		"-c:a", "libmp3lame",
		"-q:a", "2",
		audioPath,
	}

	e.log().Debug("extracting audio", zap.String("ffmpeg", e.FFmpegPath), zap.Strings("args", args))
	if _, err := e.runner()(ctx, e.FFmpegPath, args...); err != nil {
		if cleanupErr := removePartialOutput(audioPath); cleanupErr != nil {
			e.log().Warn("failed to remove partial audio", zap.String("path", audioPath), zap.Error(cleanupErr))
		}
		return "", fmt.Errorf("extract audio: %w", err)
	}

	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("ffmpeg completed but extracted audio is missing: %w", err)
	}

	return audioPath, nil
}

func (e *Extractor) hasAudioStream(ctx context.Context, videoPath string) (bool, error) {
	out, err := e.runner()(ctx, e.FFprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		videoPath,
	)
	if err != nil {
		return false, fmt.Errorf("probe media streams: %w", err)
	}
	return countStreamIndexes(out) > 0, nil
}

// countStreamIndexes counts the lines of ffprobe csv output that are stream
// indexes; anything else is diagnostic noise.
func countStreamIndexes(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, err := strconv.Atoi(line); err == nil {
			n++
		}
	}
	return n
}

func (e *Extractor) runner() commandFunc {
	if e.run == nil {
		return commandOutput
	}
	return e.run
}

func (e *Extractor) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

func removePartialOutput(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// commandOutput returns the trimmed stdout of name. Stderr only ends up in
// the error.
func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%s failed: %w (%s)", filepath.Base(name), err, msg)
		}
		return "", fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}
	return strings.TrimSpace(string(out)), nil
}
