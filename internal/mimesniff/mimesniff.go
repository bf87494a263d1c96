// Package mimesniff classifies a file's content (never its path suffix)
// into the handful of kinds the producer dispatches on, grounded on
// gabriel-vasile/mimetype in place of original_source's tree_magic crate.
package mimesniff

import "github.com/gabriel-vasile/mimetype"

// Kind is the producer's dispatch classification.
type Kind int

const (
	KindOffice Kind = iota
	KindImage
	KindPDF
	KindAudio
	KindVideo
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindPDF:
		return "pdf"
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "office"
	}
}

// Classify sniffs buf's content and returns the dispatch kind. Anything
// that isn't image/*, application/pdf, audio/*, or video/* falls through
// to KindOffice, matching the `_ => convert_office` catch-all in
// original_source/src/server.rs.
func Classify(buf []byte) Kind {
	detected := mimetype.Detect(buf)

	switch {
	case detected.Is("application/pdf"):
		return KindPDF
	case hasPrefix(detected.String(), "image/"):
		return KindImage
	case hasPrefix(detected.String(), "audio/"):
		return KindAudio
	case hasPrefix(detected.String(), "video/"):
		return KindVideo
	default:
		return KindOffice
	}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
