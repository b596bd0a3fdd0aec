package pipeline

import (
	"errors"
	"fmt"

	"github.com/fmueller/speech2text/internal/media"
	"github.com/fmueller/speech2text/internal/staging"
	"github.com/fmueller/speech2text/internal/transcription"
)

var ErrMissingCredential = errors.New("missing API key")

// Kind names the class of a pipeline failure.
type Kind string

const (
	KindNone                 Kind = ""
	KindMissingCredential    Kind = "MissingCredential"
	KindInvalidCredential    Kind = "InvalidCredential"
	KindUnsupportedFileType  Kind = "UnsupportedFileType"
	KindNoAudioStream        Kind = "NoAudioStream"
	KindTranscriptionFailure Kind = "TranscriptionFailure"
	KindStorageFailure       Kind = "StorageFailure"
)

func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrMissingCredential):
		return KindMissingCredential
	case errors.Is(err, transcription.ErrInvalidCredential):
		return KindInvalidCredential
	case errors.Is(err, media.ErrUnsupportedFileType):
		return KindUnsupportedFileType
	case errors.Is(err, media.ErrNoAudioStream):
		return KindNoAudioStream
	case errors.Is(err, staging.ErrStorage):
		return KindStorageFailure
	default:
		return KindTranscriptionFailure
	}
}

// UserMessage converts err into the single message shown to the user.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindMissingCredential:
		return "Please enter your OpenAI API key to proceed."
	case KindInvalidCredential:
		return fmt.Sprintf("Invalid API key or OpenAI initialization failed: %v", err)
	case KindUnsupportedFileType:
		return fmt.Sprintf("Unsupported file type uploaded. Supported types: %v", media.SupportedExtensions())
	case KindNoAudioStream:
		return "The uploaded video does not have an audio stream."
	case KindStorageFailure:
		return fmt.Sprintf("Could not store the uploaded file: %v", err)
	default:
		return fmt.Sprintf("An error occurred during transcription: %v", err)
	}
}
