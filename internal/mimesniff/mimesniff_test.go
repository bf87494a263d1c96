package mimesniff

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyPNG(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}
	require.Equal(t, KindImage, Classify(png))
}

func TestClassifyPDF(t *testing.T) {
	pdf := []byte("%PDF-1.4\n%...")
	require.Equal(t, KindPDF, Classify(pdf))
}

func TestClassifyFallsBackToOffice(t *testing.T) {
	// A plain text blob is none of image/*, application/pdf, audio/* or
	// video/*, so it falls through to office.
	blob := []byte("this is not a known magic signature")
	require.Equal(t, KindOffice, Classify(blob))
}
