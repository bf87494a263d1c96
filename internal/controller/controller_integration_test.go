package controller

import (
	"bufio"
	"context"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/neowutran/qconvert/internal/config"
	"github.com/neowutran/qconvert/internal/events"
)

// TestMain lets this same test binary be re-exec'd as a synthetic
// conversion worker, the standard library's own os/exec test pattern
// (see exec_test.go's TestHelperProcess). Spawning a real child process
// here exercises Session.Run's transport/transmitter/reader wiring
// end to end without depending on any of the real untrusted-side tools.
func TestMain(m *testing.M) {
	if os.Getenv("QCONVERT_SYNTHETIC_WORKER") == "1" {
		runSyntheticWorker()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// runSyntheticWorker reads the real client preamble off stdin (so the
// transmitter side is exercised for real) and, ignoring the file
// contents, replies as if every file were a single 2x2 red PNG image.
func runSyntheticWorker() {
	reader := bufio.NewReader(os.Stdin)

	if _, err := reader.ReadString('\n'); err != nil {
		os.Exit(1)
	}
	countLine, err := reader.ReadString('\n')
	if err != nil {
		os.Exit(1)
	}
	countLine = countLine[:len(countLine)-1]
	var numFiles int
	for _, c := range countLine {
		numFiles = numFiles*10 + int(c-'0')
	}

	for i := 0; i < numFiles; i++ {
		sizeLine, err := reader.ReadString('\n')
		if err != nil {
			os.Exit(1)
		}
		sizeLine = sizeLine[:len(sizeLine)-1]
		var size int
		for _, c := range sizeLine {
			size = size*10 + int(c-'0')
		}
		if _, err := io.CopyN(io.Discard, reader, int64(size)); err != nil {
			os.Exit(1)
		}

		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				img.Set(x, y, color.RGBA{R: 200, G: 0, B: 0, A: 255})
			}
		}

		header := make([]byte, 3)
		binary.LittleEndian.PutUint16(header[0:2], 1)
		header[2] = byte(events.OutputImage)
		if _, err := os.Stdout.Write(header); err != nil {
			os.Exit(1)
		}

		dims := make([]byte, 4)
		binary.LittleEndian.PutUint16(dims[0:2], 2)
		binary.LittleEndian.PutUint16(dims[2:4], 2)
		if _, err := os.Stdout.Write(dims); err != nil {
			os.Exit(1)
		}
		if _, err := os.Stdout.Write(img.Pix); err != nil {
			os.Exit(1)
		}
	}
}

func TestSessionRunSingleImageFile(t *testing.T) {
	dir := t.TempDir()

	sourcePath := filepath.Join(dir, "photo.png")
	writeTestPNG(t, sourcePath)

	params := config.Parameters{
		Files:              []string{sourcePath},
		InPlace:            true,
		MaxPagesInParallel: 2,
	}

	session, err := New(params)
	require.NoError(t, err)

	var received []events.ConvertEvent
	done := make(chan struct{})
	go func() {
		for ev := range session.Events() {
			received = append(received, ev)
		}
		close(done)
	}()

	workerArgs := []string{"-test.run=TestSessionRunSingleImageFile", "-test.v=false"}
	err = runWithSyntheticWorker(t, session, workerArgs)
	require.NoError(t, err)

	<-done

	require.NotEmpty(t, received)
	require.Equal(t, events.FileQueued, received[0].Kind)
	require.Equal(t, events.FileConverted, received[len(received)-1].Kind)

	trusted := filepath.Join(dir, "photo.trusted.png")
	require.FileExists(t, trusted)
	require.NoFileExists(t, sourcePath)
}

// runWithSyntheticWorker spawns this test binary, reconfigured by an
// environment variable to behave as a synthetic worker, as Session.Run's
// child process.
func runWithSyntheticWorker(t *testing.T, session *Session, workerArgs []string) error {
	t.Helper()
	self, err := os.Executable()
	require.NoError(t, err)

	origEnv, had := os.LookupEnv("QCONVERT_SYNTHETIC_WORKER")
	require.NoError(t, os.Setenv("QCONVERT_SYNTHETIC_WORKER", "1"))
	defer func() {
		if had {
			_ = os.Setenv("QCONVERT_SYNTHETIC_WORKER", origEnv)
		} else {
			_ = os.Unsetenv("QCONVERT_SYNTHETIC_WORKER")
		}
	}()

	// Session.Run spawns its own child and inherits the parent's
	// environment, so setting it here for the duration of Run is enough;
	// Spawn does not copy cmd.Env explicitly, so the child sees os.Environ().
	return session.Run(context.Background(), self, workerArgs)
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}
