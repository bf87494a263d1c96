package producer

import (
	"bufio"
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertImageReturnsSourceAsSolePage(t *testing.T) {
	pages, err := convertImage("/tmp/whatever/source")
	require.NoError(t, err)
	require.Equal(t, []string{"/tmp/whatever/source"}, pages)
}

func TestSendPageRoundTrip(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "page.png")

	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 20), B: 5, A: 255})
		}
	}
	f, err := os.Create(srcPath)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	var buf bytes.Buffer
	require.NoError(t, sendPage(&buf, srcPath))
	require.NoFileExists(t, srcPath)

	reader := bufio.NewReader(&buf)
	width := readLE16(t, reader)
	height := readLE16(t, reader)
	require.Equal(t, uint16(3), width)
	require.Equal(t, uint16(2), height)

	pixels := make([]byte, int(width)*int(height)*4)
	_, err = readFull(reader, pixels)
	require.NoError(t, err)
	require.Equal(t, byte(0), pixels[0])   // (0,0) red channel
	require.Equal(t, byte(255), pixels[3]) // (0,0) alpha channel
}

func TestProcessOneFileRejectsAudio(t *testing.T) {
	dir := t.TempDir()
	p := &Producer{workDir: dir}

	wavHeader := []byte("RIFF\x24\x00\x00\x00WAVEfmt ")
	var preamble bytes.Buffer
	preamble.WriteString("16\n")
	preamble.Write(wavHeader)

	err := p.processOneFile(bufio.NewReader(&preamble), "", 0)
	require.Error(t, err)
}

func readLE16(t *testing.T, r *bufio.Reader) uint16 {
	t.Helper()
	buf := make([]byte, 2)
	_, err := readFull(r, buf)
	require.NoError(t, err)
	return uint16(buf[0]) | uint16(buf[1])<<8
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
