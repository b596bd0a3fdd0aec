package transcription

import (
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// NoTranscription is shown when the remote result carries no text.
const NoTranscription = "No transcription available."

type texter interface {
	Text() string
}

// Text extracts the transcript from a remote result. Both mapping results
// (a "text" key) and object results (a Text field or method) are accepted;
// anything else, or blank text, yields NoTranscription.
func Text(result any) string {
	var text string

	switch v := result.(type) {
	case nil:
	case string:
		text = v
	case openai.AudioResponse:
		text = v.Text
	case *openai.AudioResponse:
		if v != nil {
			text = v.Text
		}
	case map[string]any:
		if s, ok := v["text"].(string); ok {
			text = s
		}
	case map[string]string:
		text = v["text"]
	case texter:
		text = v.Text()
	}

	if strings.TrimSpace(text) == "" {
		return NoTranscription
	}
	return text
}
