package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/speech2text/internal/pipeline"
	"github.com/fmueller/speech2text/internal/presenter"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	return runAppCommand(t, &appState{}, args)
}

func runAppCommand(t *testing.T, app *appState, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := newRootCmd(app)
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

type recordedRun struct {
	requests []pipeline.Request
	payloads [][]byte
}

func (r *recordedRun) returning(transcript string, runErr error) runFunc {
	return func(_ context.Context, req pipeline.Request) (pipeline.Result, error) {
		payload, err := io.ReadAll(req.Upload.Data)
		if err != nil {
			return pipeline.Result{}, err
		}
		r.requests = append(r.requests, req)
		r.payloads = append(r.payloads, payload)
		if runErr != nil {
			return pipeline.Result{}, runErr
		}
		return pipeline.Result{Transcript: transcript, Download: presenter.NewDownload(transcript)}, nil
	}
}

func writeMedia(t *testing.T, name string, payload []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, payload, 0o600))
	return path
}
