package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fmueller/speech2text/internal/config"
	"github.com/fmueller/speech2text/internal/logging"
	"github.com/fmueller/speech2text/internal/media"
	"github.com/fmueller/speech2text/internal/pipeline"
	"github.com/fmueller/speech2text/internal/platform"
	"github.com/fmueller/speech2text/internal/staging"
	"github.com/fmueller/speech2text/internal/transcription"
	"github.com/fmueller/speech2text/internal/version"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/spf13/cobra"
)

type runFunc func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)

type appState struct {
	envFile  string
	settings config.Settings

	logger *zap.Logger

	// runFn replaces the pipeline built from settings when set.
	runFn runFunc
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&appState{})
}

func newRootCmd(app *appState) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "speech2text",
		Short:         "Transcribe audio and video files with the OpenAI Whisper API",
		Long:          "speech2text serves a small web page where you upload an audio or video file and get its transcript back.\nVideos are converted to audio with ffmpeg before transcription.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Resolve(),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.prepare(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.serve(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.Bool("verbose", false, "Enable verbose logs")
	pf.Bool("json", false, "Enable JSON logging")
	pf.String("log-level", "info", "Log level: debug|info|warn|error")
	pf.Bool("no-progress", false, "Disable progress indicators")
	pf.StringVar(&app.envFile, "env-file", config.DefaultEnvFile, "Read environment variables from this file if it exists")
	pf.String("staging-dir", "", "Directory for transient upload files (default: per-user temp directory)")
	pf.String("ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	pf.String("ffprobe", "ffprobe", "Path to the ffprobe binary")
	pf.String("api-base-url", "", "Override the OpenAI API base URL")

	bindServeFlags(cmd)

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// prepare loads the env file, resolves settings from flags and environment,
// and builds the logger for the command being executed.
func (a *appState) prepare(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if err := config.LoadEnvFile(a.envFile, flags.Changed("env-file")); err != nil {
		return err
	}

	settings, err := config.Resolve(flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Verbose: settings.Verbose, JSON: settings.JSON, Level: settings.LogLevel})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	a.settings = settings
	a.logger = logger
	return nil
}

func (a *appState) runner() (runFunc, error) {
	if a.runFn != nil {
		return a.runFn, nil
	}

	p, err := a.buildPipeline()
	if err != nil {
		return nil, err
	}
	return p.Run, nil
}

func (a *appState) buildPipeline() (*pipeline.Pipeline, error) {
	dir, err := platform.ResolveStagingDir(a.settings.StagingDir)
	if err != nil {
		return nil, err
	}

	store, err := staging.NewStore(dir, a.log())
	if err != nil {
		return nil, err
	}

	extractor := media.NewExtractor(a.settings.FFmpeg, a.settings.FFprobe, a.log())
	if !extractor.Available() {
		a.log().Warn("ffmpeg or ffprobe not found; video uploads will fail", zap.String("ffmpeg", extractor.FFmpegPath), zap.String("ffprobe", extractor.FFprobePath))
	}

	client := transcription.NewClient(transcription.Options{
		BaseURL: a.settings.APIBaseURL,
		Logger:  a.log(),
	})

	a.log().Debug("pipeline ready", zap.String("staging_dir", dir))
	return pipeline.New(pipeline.Options{
		Store:       store,
		Extractor:   extractor,
		Transcriber: client,
		Logger:      a.log(),
	})
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.settings.NoProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
