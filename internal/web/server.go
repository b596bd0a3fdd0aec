package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/fmueller/speech2text/internal/media"
	"github.com/fmueller/speech2text/internal/pipeline"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

//go:embed templates/index.html
var templateFS embed.FS

const (
	DefaultAddr        = "127.0.0.1:8501"
	DefaultMaxUploadMB = 200

	shutdownTimeout = 10 * time.Second
)

// Runner executes one transcription request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error)
}

type RunnerFunc func(ctx context.Context, req pipeline.Request) (pipeline.Result, error)

func (f RunnerFunc) Run(ctx context.Context, req pipeline.Request) (pipeline.Result, error) {
	return f(ctx, req)
}

type Options struct {
	Runner      Runner
	Logger      *zap.Logger
	MaxUploadMB int64
}

type Server struct {
	runner         Runner
	logger         *zap.Logger
	maxUploadBytes int64
	page           *template.Template
	router         *mux.Router
}

func NewServer(opts Options) (*Server, error) {
	if opts.Runner == nil {
		return nil, errors.New("web: runner is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = DefaultMaxUploadMB
	}
	if opts.MaxUploadMB > math.MaxInt64>>20 {
		return nil, fmt.Errorf("web: max upload of %d MB overflows the byte limit", opts.MaxUploadMB)
	}

	page, err := template.New("index.html").
		Funcs(template.FuncMap{"join": strings.Join}).
		ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	s := &Server{
		runner:         opts.Runner,
		logger:         opts.Logger,
		maxUploadBytes: opts.MaxUploadMB << 20,
		page:           page,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestID, s.accessLog)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	uploads := r.NewRoute().Subrouter()
	uploads.Use(s.limitBody)
	uploads.HandleFunc("/transcribe", s.handleTranscribe).Methods(http.MethodPost)
	uploads.HandleFunc("/api/v1/transcriptions", s.handleAPITranscribe).Methods(http.MethodPost)

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func acceptList() string {
	exts := media.SupportedExtensions()
	out := make([]string, len(exts))
	for i, ext := range exts {
		out[i] = "." + ext
	}
	return strings.Join(out, ",")
}
