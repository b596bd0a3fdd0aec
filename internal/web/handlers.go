package web

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/fmueller/speech2text/internal/media"
	"github.com/fmueller/speech2text/internal/pipeline"
	"github.com/fmueller/speech2text/internal/presenter"
	"go.uber.org/zap"
)

const multipartMemory = 32 << 20

type pageData struct {
	Extensions  []string
	Accept      string
	MaxUploadMB int64

	Warning  string
	Info     string
	Error    string
	Success  string
	FileName string
	Status   []string

	HasTranscript bool
	Transcript    string
	DownloadURL   template.URL
	DownloadName  string
}

func (s *Server) newPage() pageData {
	return pageData{
		Extensions:  media.SupportedExtensions(),
		Accept:      acceptList(),
		MaxUploadMB: s.maxUploadBytes >> 20,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	page := s.newPage()
	page.Info = "Upload an audio or video file to start."
	s.render(w, http.StatusOK, page)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	page := s.newPage()
	log := s.requestLogger(r)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status, message := formError(err)
		page.Error = message
		s.render(w, status, page)
		return
	}
	defer removeMultipart(r, log)

	credential := strings.TrimSpace(r.PostFormValue("api_key"))
	if credential == "" {
		page.Warning = pipeline.UserMessage(pipeline.ErrMissingCredential)
		s.render(w, http.StatusOK, page)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		page.Info = "Upload an audio or video file to start."
		s.render(w, http.StatusOK, page)
		return
	}
	defer file.Close()

	page.FileName = header.Filename
	if media.Classify(media.NormalizeExtension(header.Filename)) == media.VideoNeedsExtraction {
		page.Status = append(page.Status, "Extracting audio from video...")
	}

	result, err := s.runner.Run(r.Context(), pipeline.Request{
		Credential: credential,
		Upload:     pipeline.Upload{Name: header.Filename, Data: file},
	})
	if err != nil {
		page.Error = pipeline.UserMessage(err)
		s.render(w, statusFor(err), page)
		return
	}

	page.Success = "Transcription completed!"
	page.HasTranscript = true
	page.Transcript = result.Transcript
	page.DownloadName = result.Download.FileName
	// DataURL is base64 with a fixed text/plain prefix
	page.DownloadURL = template.URL(result.Download.DataURL())
	s.render(w, http.StatusOK, page)
}

type apiResponse struct {
	Text     string `json:"text,omitempty"`
	FileName string `json:"filename,omitempty"`
	Error    string `json:"error,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// handleAPITranscribe accepts the same multipart upload as the page. The key
// may come from the api_key field or an "Authorization: Bearer" header.
// Clients that ask for text/plain get the transcript as a download.
func (s *Server) handleAPITranscribe(w http.ResponseWriter, r *http.Request) {
	log := s.requestLogger(r)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		status, message := formError(err)
		writeJSON(w, status, apiResponse{Error: message, Kind: "BadRequest"})
		return
	}
	defer removeMultipart(r, log)

	credential := strings.TrimSpace(r.PostFormValue("api_key"))
	if credential == "" {
		credential = bearerToken(r.Header.Get("Authorization"))
	}
	if credential == "" {
		err := pipeline.ErrMissingCredential
		writeJSON(w, statusFor(err), apiResponse{Error: pipeline.UserMessage(err), Kind: string(pipeline.KindOf(err))})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, apiResponse{Error: "multipart field \"file\" is required", Kind: "BadRequest"})
		return
	}
	defer file.Close()

	result, err := s.runner.Run(r.Context(), pipeline.Request{
		Credential: credential,
		Upload:     pipeline.Upload{Name: header.Filename, Data: file},
	})
	if err != nil {
		writeJSON(w, statusFor(err), apiResponse{Error: pipeline.UserMessage(err), Kind: string(pipeline.KindOf(err))})
		return
	}

	if wantsPlainText(r.Header.Get("Accept")) {
		if err := result.Download.Write(w); err != nil {
			log.Debug("write download", zap.Error(err))
		}
		return
	}

	writeJSON(w, http.StatusOK, apiResponse{Text: result.Transcript, FileName: presenter.FileName})
}

func (s *Server) render(w http.ResponseWriter, status int, page pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, page); err != nil {
		s.logger.Error("render page", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func statusFor(err error) int {
	switch pipeline.KindOf(err) {
	case pipeline.KindMissingCredential, pipeline.KindInvalidCredential:
		return http.StatusUnauthorized
	case pipeline.KindUnsupportedFileType:
		return http.StatusUnsupportedMediaType
	case pipeline.KindNoAudioStream:
		return http.StatusUnprocessableEntity
	case pipeline.KindStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func formError(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "The uploaded file is too large."
	}
	return http.StatusBadRequest, "Could not read the upload: " + err.Error()
}

func removeMultipart(r *http.Request, log *zap.Logger) {
	if r.MultipartForm == nil {
		return
	}
	if err := r.MultipartForm.RemoveAll(); err != nil {
		log.Warn("failed to remove multipart temp files", zap.Error(err))
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func wantsPlainText(accept string) bool {
	for _, part := range strings.Split(accept, ",") {
		mediaType := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if strings.EqualFold(mediaType, "text/plain") {
			return true
		}
	}
	return false
}
