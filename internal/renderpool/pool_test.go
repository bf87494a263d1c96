package renderpool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/neowutran/qconvert/internal/events"
)

func TestPoolImageJobNeedsNoSubprocess(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "0.png")
	require.NoError(t, os.WriteFile(png, []byte("fake-png-bytes"), 0o644))

	p := New(context.Background(), 2)
	p.Submit(Job{PageIndex: 0, PNGPath: png, Kind: events.OutputImage})

	select {
	case artifact := <-p.Results():
		require.NoError(t, artifact.Err)
		require.Equal(t, png, artifact.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for image job")
	}
}

func TestPoolBoundsConcurrency(t *testing.T) {
	// With a permit count of 1, a second image job (which needs no
	// subprocess and so completes essentially immediately) still must
	// wait for the first result to be drained before its goroutine can
	// acquire a permit... but since image jobs are synchronous and fast,
	// this mainly exercises that both results eventually arrive without
	// deadlock.
	dir := t.TempDir()
	pngA := filepath.Join(dir, "a.png")
	pngB := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(pngA, []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(pngB, []byte("b"), 0o644))

	p := New(context.Background(), 1)
	p.Submit(Job{PageIndex: 0, PNGPath: pngA, Kind: events.OutputImage})
	p.Submit(Job{PageIndex: 1, PNGPath: pngB, Kind: events.OutputImage})

	seen := map[uint16]bool{}
	for i := 0; i < 2; i++ {
		select {
		case artifact := <-p.Results():
			require.NoError(t, artifact.Err)
			seen[artifact.PageIndex] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	require.True(t, seen[0])
	require.True(t, seen[1])
}
