package producer

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/neowutran/qconvert/internal/wire"
)

// decodeRGBA decodes path with the native decoders registered via the
// blank imports above. If none of them recognize the format, it shells
// out to a general image converter ("gm convert ... png:...") to produce
// a PNG first and decodes that, matching
// original_source/src/server.rs::convert_to_png_and_open.
func decodeRGBA(path string) (*image.RGBA, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		pngPath := path + ".converted.png"
		cmd := exec.Command("gm", "convert", path, "png:"+pngPath)
		if out, runErr := cmd.CombinedOutput(); runErr != nil {
			return nil, fmt.Errorf("native decode failed (%v) and gm convert fallback failed: %w (%s)", err, runErr, out)
		}
		defer os.Remove(pngPath)

		converted, decodeErr := os.ReadFile(pngPath)
		if decodeErr != nil {
			return nil, fmt.Errorf("could not read gm-converted png: %w", decodeErr)
		}
		img, decodeErr = png.Decode(bytes.NewReader(converted))
		if decodeErr != nil {
			return nil, fmt.Errorf("could not decode gm-converted png: %w", decodeErr)
		}
	}

	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			rgba.Set(x, y, img.At(x, y))
		}
	}
	return rgba
}

// sendPage decodes the image at path to RGBA and writes it onto w as one
// PageRecord: (u16 width LE, u16 height LE, width*height*4 raw RGBA
// bytes). The source file is removed afterward regardless of outcome, to
// keep worker scratch usage bounded across a session with many pages.
func sendPage(w io.Writer, path string) error {
	defer os.Remove(path)

	rgba, err := decodeRGBA(path)
	if err != nil {
		return fmt.Errorf("could not decode page: %w", err)
	}

	bounds := rgba.Bounds()
	width := uint16(bounds.Dx())
	height := uint16(bounds.Dy())

	if err := wire.WriteUint16LE(w, width); err != nil {
		return err
	}
	if err := wire.WriteUint16LE(w, height); err != nil {
		return err
	}

	// image.RGBA rows may be padded beyond width*4 (Stride); write
	// exactly width*height*4 tightly packed bytes, one row at a time.
	rowBytes := int(width) * 4
	for y := 0; y < int(height); y++ {
		start := y * rgba.Stride
		if err := wire.WriteAll(w, rgba.Pix[start:start+rowBytes]); err != nil {
			return fmt.Errorf("could not write page pixels: %w", err)
		}
	}

	return nil
}

// convertImage handles the image branch: the source file is the sole page.
func convertImage(sourcePath string) ([]string, error) {
	return []string{sourcePath}, nil
}
