package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fmueller/speech2text/internal/media"
	"github.com/fmueller/speech2text/internal/presenter"
	"github.com/fmueller/speech2text/internal/staging"
	"go.uber.org/zap"
)

// State is a step of one pipeline invocation.
type State string

const (
	StateIdle            State = "Idle"
	StateStaged          State = "Staged"
	StateClassifiedAudio State = "Classified:AudioDirect"
	StateClassifiedVideo State = "Classified:VideoNeedsExtraction"
	StateExtracted       State = "Extracted"
	StateTranscribing    State = "Transcribing"
	StateDone            State = "Done"
	StateFailed          State = "Failed"
	StateCleaned         State = "Cleaned"
)

type Stager interface {
	Stage(payload io.Reader, ext string) (string, error)
	NewScope() *staging.Scope
}

type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, credential string) (string, error)
}

// Upload is a file received from the user; Name is only used for its extension.
type Upload struct {
	Name string
	Data io.Reader
}

// Request carries everything one invocation needs. Nothing in it outlives Run.
type Request struct {
	Credential string
	Upload     Upload
}

type Result struct {
	Transcript string
	Download   presenter.Download
	Extracted  bool
}

type Options struct {
	Store       Stager
	Extractor   AudioExtractor
	Transcriber Transcriber
	Logger      *zap.Logger
	OnState     func(State)
}

type Pipeline struct {
	store       Stager
	extractor   AudioExtractor
	transcriber Transcriber
	logger      *zap.Logger
	onState     func(State)
}

func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline: staging store is required")
	}
	if opts.Extractor == nil {
		return nil, errors.New("pipeline: audio extractor is required")
	}
	if opts.Transcriber == nil {
		return nil, errors.New("pipeline: transcriber is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Pipeline{
		store:       opts.Store,
		extractor:   opts.Extractor,
		transcriber: opts.Transcriber,
		logger:      opts.Logger,
		onState:     opts.OnState,
	}, nil
}

// Run stages the upload, extracts audio from videos, transcribes, and removes
// every transient file it created before returning.
func (p *Pipeline) Run(ctx context.Context, req Request) (Result, error) {
	p.emit(StateIdle)

	if strings.TrimSpace(req.Credential) == "" {
		p.logger.Warn("no API key provided; nothing to do")
		return Result{}, ErrMissingCredential
	}

	ext := media.NormalizeExtension(req.Upload.Name)
	log := p.logger.With(zap.String("upload", req.Upload.Name), zap.String("extension", ext))
	log.Info("uploaded file received")

	result, err := p.run(ctx, log, req, ext)
	if err != nil {
		p.emit(StateFailed)
		log.Warn("pipeline failed", zap.String("kind", string(KindOf(err))), zap.Error(err))
	} else {
		p.emit(StateDone)
	}
	p.emit(StateCleaned)
	return result, err
}

func (p *Pipeline) run(ctx context.Context, log *zap.Logger, req Request, ext string) (Result, error) {
	scope := p.store.NewScope()
	defer func() {
		// cleanup errors are logged by the scope and must not mask the outcome
		_ = scope.Release()
	}()

	kind := media.Classify(ext)
	// unsupported uploads are staged as opaque bytes
	stagedExt := ext
	if kind == media.Unsupported {
		stagedExt = "bin"
	}
	stagedPath, err := p.store.Stage(req.Upload.Data, stagedExt)
	if err != nil {
		return Result{}, err
	}
	scope.Track(stagedPath)
	p.emit(StateStaged)

	audioPath := stagedPath
	extracted := false

	switch kind {
	case media.AudioDirect:
		p.emit(StateClassifiedAudio)
	case media.VideoNeedsExtraction:
		p.emit(StateClassifiedVideo)
		log.Info("extracting audio from video...")
		audioPath, err = p.extractor.ExtractAudio(ctx, stagedPath)
		if err != nil {
			return Result{}, err
		}
		scope.Track(audioPath)
		extracted = true
		p.emit(StateExtracted)
	default:
		return Result{}, fmt.Errorf("%w: %q", media.ErrUnsupportedFileType, ext)
	}

	p.emit(StateTranscribing)
	transcript, err := p.transcriber.Transcribe(ctx, audioPath, req.Credential)
	if err != nil {
		return Result{}, err
	}
	log.Info("transcription completed", zap.Int("chars", len(transcript)), zap.Bool("extracted", extracted))

	return Result{
		Transcript: transcript,
		Download:   presenter.NewDownload(transcript),
		Extracted:  extracted,
	}, nil
}

func (p *Pipeline) emit(state State) {
	p.logger.Debug("pipeline state", zap.String("state", string(state)))
	if p.onState != nil {
		p.onState(state)
	}
}
