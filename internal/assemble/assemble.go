// Package assemble combines a file's per-page artifacts into the single
// trusted output the controller writes back to the filesystem.
package assemble

import (
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Image copies the single per-page PNG artifact to outputPath.
func Image(pngPath, outputPath string) error {
	src, err := os.Open(pngPath)
	if err != nil {
		return fmt.Errorf("%w: could not open page artifact: %v", ErrFilesystem, err)
	}
	defer src.Close()

	dst, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("%w: could not create trusted output: %v", ErrFilesystem, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("%w: could not write trusted output: %v", ErrFilesystem, err)
	}
	return nil
}

// PDF concatenates pagePaths, already in page-index order, into a single
// trusted PDF at outputPath. Uses pdfcpu's in-process merge rather than
// shelling out to pdfunite: this step runs entirely on the trusted side,
// where a library call avoids fork overhead and lets us assert the merged
// page count matches len(pagePaths) before calling it a success.
func PDF(pagePaths []string, outputPath string) error {
	if len(pagePaths) == 0 {
		return fmt.Errorf("%w: no pages to assemble", ErrFilesystem)
	}

	if err := api.MergeCreateFile(pagePaths, outputPath, false, nil); err != nil {
		return fmt.Errorf("%w: pdf merge failed (check available disk space): %v", ErrMergeFailed, err)
	}

	pageCount, err := api.PageCountFile(outputPath)
	if err != nil {
		return fmt.Errorf("%w: could not verify merged page count: %v", ErrMergeFailed, err)
	}
	if pageCount != len(pagePaths) {
		return fmt.Errorf("%w: merged pdf has %d pages, expected %d", ErrMergeFailed, pageCount, len(pagePaths))
	}
	return nil
}
