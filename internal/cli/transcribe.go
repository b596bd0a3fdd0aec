package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fmueller/speech2text/internal/pipeline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcribe <media-file>",
		Short: "Transcribe an audio or video file",
		Long:  "Transcribe an audio or video file and print the transcript to stdout.\nThe API key is read from --api-key, SPEECH2TEXT_API_KEY or OPENAI_API_KEY.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.transcribeFile(cmd.Context(), cmd.OutOrStdout(), args[0])
		},
	}

	cmd.Flags().String("api-key", "", "OpenAI API key")
	cmd.Flags().String("output", "", "Also write transcription.txt into this directory")
	return cmd
}

func (a *appState) transcribeFile(ctx context.Context, out io.Writer, mediaPath string) error {
	mediaPath = filepath.Clean(mediaPath)
	f, err := os.Open(mediaPath)
	if err != nil {
		return fmt.Errorf("media file not found: %w", err)
	}
	defer f.Close()

	run, err := a.runner()
	if err != nil {
		return err
	}

	name := filepath.Base(mediaPath)
	a.log().Info("Uploaded file: "+name, zap.String("path", mediaPath))

	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()
	result, err := run(ctx, pipeline.Request{
		Credential: a.settings.APIKey,
		Upload:     pipeline.Upload{Name: name, Data: f},
	})
	stopSpinner()
	if err != nil {
		if pipeline.KindOf(err) == pipeline.KindMissingCredential {
			a.log().Warn(pipeline.UserMessage(err))
		}
		return userError{err: err}
	}
	if result.Extracted {
		a.log().Info("extracted audio from video", zap.String("path", mediaPath))
	}
	a.log().Info("Transcription completed!", zap.Duration("elapsed", time.Since(started)))

	fmt.Fprintln(out, result.Transcript)

	if a.settings.Output != "" {
		path, err := result.Download.Save(a.settings.Output)
		if err != nil {
			return err
		}
		a.log().Info("transcript saved", zap.String("path", path))
	}
	return nil
}

// userError prints as the message shown on the web page while keeping the
// underlying error reachable through errors.Is.
type userError struct {
	err error
}

func (e userError) Error() string {
	return pipeline.UserMessage(e.err)
}

func (e userError) Unwrap() error {
	return e.err
}
