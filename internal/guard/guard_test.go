package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPageCount(t *testing.T) {
	require.NoError(t, CheckPageCount(MaxPages))
	err := CheckPageCount(65535)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCapExceeded))
}

func TestCheckPageDimensions(t *testing.T) {
	require.NoError(t, CheckPageDimensions(MaxImgWidth, 1))
	require.Error(t, CheckPageDimensions(20000, 1))
	require.Error(t, CheckPageDimensions(1, 20000))
}

func TestCheckPageDimensionsNoOverflow(t *testing.T) {
	// width*height*4 must be checked in at least 64 bits so a crafted
	// pair near the u16 boundary can't wrap back under the cap.
	err := CheckPageDimensions(65535, 65535)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCapExceeded))
}
