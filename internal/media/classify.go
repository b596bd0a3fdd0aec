package media

import (
	"errors"
	"sort"
	"strings"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

type Kind int

const (
	Unsupported Kind = iota
	AudioDirect
	VideoNeedsExtraction
)

func (k Kind) String() string {
	switch k {
	case AudioDirect:
		return "AudioDirect"
	case VideoNeedsExtraction:
		return "VideoNeedsExtraction"
	default:
		return "Unsupported"
	}
}

var (
	audioExtensions = []string{"mp3", "wav", "m4a"}
	videoExtensions = []string{"mp4", "mov", "avi", "mpeg"}
)

// NormalizeExtension returns the lower-cased text after the last dot in name,
// or an empty string when name has no extension.
func NormalizeExtension(name string) string {
	name = strings.TrimSpace(name)
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(name[idx+1:]))
}

func Classify(ext string) Kind {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, candidate := range audioExtensions {
		if ext == candidate {
			return AudioDirect
		}
	}
	for _, candidate := range videoExtensions {
		if ext == candidate {
			return VideoNeedsExtraction
		}
	}
	return Unsupported
}

func SupportedExtensions() []string {
	all := make([]string, 0, len(audioExtensions)+len(videoExtensions))
	all = append(all, audioExtensions...)
	all = append(all, videoExtensions...)
	sort.Strings(all)
	return all
}
