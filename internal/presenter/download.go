package presenter

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	FileName    = "transcription.txt"
	ContentType = "text/plain; charset=utf-8"
)

// Download is the (filename, bytes, mime) triple offered for a transcript.
type Download struct {
	FileName    string
	ContentType string
	Body        []byte
}

func NewDownload(transcript string) Download {
	return Download{
		FileName:    FileName,
		ContentType: ContentType,
		Body:        []byte(transcript),
	}
}

// Write serves d as an attachment.
func (d Download) Write(w http.ResponseWriter) error {
	h := w.Header()
	h.Set("Content-Type", d.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": d.FileName}))
	h.Set("Content-Length", strconv.Itoa(len(d.Body)))
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(d.Body)
	return err
}

// Save writes d into dir and returns the written path.
func (d Download) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(dir, d.FileName)
	if err := os.WriteFile(path, d.Body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", d.FileName, err)
	}
	return path, nil
}

// DataURL encodes d as a data: URL so a page can offer the exact bytes
// without a second request.
func (d Download) DataURL() string {
	return "data:" + strings.ReplaceAll(d.ContentType, " ", "") + ";base64," + base64.StdEncoding.EncodeToString(d.Body)
}
