package controller

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neowutran/qconvert/internal/events"
)

func TestTrustedOutputPathPDF(t *testing.T) {
	got := trustedOutputPath("/tmp/docs/report.docx", events.OutputPDF)
	require.Equal(t, filepath.Join("/tmp/docs", "report.trusted.pdf"), got)
}

func TestTrustedOutputPathImage(t *testing.T) {
	got := trustedOutputPath("/tmp/docs/photo.jpeg", events.OutputImage)
	require.Equal(t, filepath.Join("/tmp/docs", "photo.trusted.png"), got)
}

func TestIsSessionFatal(t *testing.T) {
	require.True(t, isSessionFatal(ErrCapExceeded))
	require.True(t, isSessionFatal(ErrTransportBroken))
	require.True(t, isSessionFatal(ErrInvalidOutputContract))
	require.False(t, isSessionFatal(ErrFilesystem))
	require.False(t, isSessionFatal(ErrSubprocessFailed))
}
