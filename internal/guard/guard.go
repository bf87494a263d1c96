// Package guard holds the stateless resource caps that must be checked
// before the controller allocates anything sized by a number the worker
// sent it. The worker side of the trust boundary is not trusted to stay
// within these bounds, so every check here runs before the corresponding
// allocation, never after.
package guard

import "fmt"

// Hard caps mirrored from original_source/src/client_core.rs.
const (
	MaxPages      = 10_000
	MaxImgWidth   = 10_000
	MaxImgHeight  = 10_000
	MaxImgSize    = MaxImgWidth * MaxImgHeight * 4
)

// CheckPageCount reports whether pageCount exceeds MaxPages.
func CheckPageCount(pageCount uint16) error {
	if int(pageCount) > MaxPages {
		return fmt.Errorf("%w: got %d pages, max is %d", ErrCapExceeded, pageCount, MaxPages)
	}
	return nil
}

// CheckPageDimensions reports whether width/height (and their implied RGBA
// byte count) exceed the hard caps. The byte-count check is computed in at
// least 64 bits so an adversarial width*height can't wrap back under the
// cap.
func CheckPageDimensions(width, height uint16) error {
	if int(width) > MaxImgWidth {
		return fmt.Errorf("%w: width %d exceeds max %d", ErrCapExceeded, width, MaxImgWidth)
	}
	if int(height) > MaxImgHeight {
		return fmt.Errorf("%w: height %d exceeds max %d", ErrCapExceeded, height, MaxImgHeight)
	}
	size := uint64(width) * uint64(height) * 4
	if size > uint64(MaxImgSize) {
		return fmt.Errorf("%w: %dx%d image needs %d bytes, max is %d", ErrCapExceeded, width, height, size, MaxImgSize)
	}
	return nil
}
