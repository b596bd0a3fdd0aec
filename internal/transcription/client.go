package transcription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Model is the remote speech-to-text model every request is sent to.
const Model = openai.Whisper1

var (
	ErrInvalidCredential   = errors.New("invalid API key or client initialization failed")
	ErrTranscriptionFailed = errors.New("transcription failed")
)

type Options struct {
	// BaseURL overrides the API endpoint, e.g. for a compatible proxy.
	BaseURL    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
	}
}

// Transcribe submits the audio file at audioPath under Model and returns the
// normalized transcript text. Failures are not retried.
func (c *Client) Transcribe(ctx context.Context, audioPath, credential string) (string, error) {
	api, err := c.newAPIClient(credential)
	if err != nil {
		return "", err
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: open audio: %v", ErrTranscriptionFailed, err)
	}
	defer f.Close()

	c.logger.Info("transcribing...", zap.String("audio", audioPath), zap.String("model", Model))
	started := time.Now()

	resp, err := api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    Model,
		FilePath: filepath.Base(audioPath),
		Reader:   f,
	})
	if err != nil {
		c.logger.Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", classifyAPIError(err)
	}
	c.logger.Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return Text(resp), nil
}

func (c *Client) newAPIClient(credential string) (*openai.Client, error) {
	if err := validateCredential(credential); err != nil {
		return nil, err
	}

	cfg := openai.DefaultConfig(credential)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	if c.httpClient != nil {
		cfg.HTTPClient = c.httpClient
	}
	return openai.NewClientWithConfig(cfg), nil
}

func validateCredential(credential string) error {
	if credential == "" {
		return fmt.Errorf("%w: API key is empty", ErrInvalidCredential)
	}
	for _, r := range credential {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return fmt.Errorf("%w: API key contains whitespace or control characters", ErrInvalidCredential)
		}
	}
	return nil
}

func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return fmt.Errorf("%w: %v", ErrTranscriptionFailed, err)
}
