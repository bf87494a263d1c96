// Package renderpool implements the client-side bounded concurrent
// page-encoder pool: for each PageRecord the controller hands it a PNG
// already written to scratch, and the pool turns that into the per-page
// artifact (the PNG itself, a rasterized PDF page, or an OCR'd PDF page)
// without ever running more than max_pages_in_parallel subprocesses at
// once. The teacher's executeStage/writeStage split capped concurrency by
// starting exactly N worker goroutines fed from channels; this pool caps
// concurrency the equivalent idiomatic way for an unbounded job count, a
// golang.org/x/sync/semaphore.Weighted permit per in-flight job.
package renderpool

import (
	"context"
	"fmt"
	"os/exec"

	"golang.org/x/sync/semaphore"

	"github.com/neowutran/qconvert/internal/events"
)

// Job describes one page's encode work. PNGPath must already exist on
// disk; OutputBase is the extensionless path the encoder writes its
// result to.
type Job struct {
	PageIndex  uint16
	PNGPath    string
	OutputBase string
	Kind       events.OutputKind
	OCRLang    string
}

// Artifact is one completed (or failed) page-encode job.
type Artifact struct {
	PageIndex uint16
	Path      string
	Err       error
}

// Pool bounds concurrent page-encoder subprocesses to a fixed permit
// count for the lifetime of a session.
type Pool struct {
	sem     *semaphore.Weighted
	ctx     context.Context
	results chan Artifact
}

// New creates a pool that allows at most maxParallel unfinished jobs at
// once.
func New(ctx context.Context, maxParallel int) *Pool {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Pool{
		sem:     semaphore.NewWeighted(int64(maxParallel)),
		ctx:     ctx,
		results: make(chan Artifact),
	}
}

// Submit starts the job's encode work in a new goroutine and returns at
// once; the caller is never blocked. That goroutine waits for a permit
// before running anything and holds it until its result has been received
// from Results.
func (p *Pool) Submit(job Job) {
	go func() {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.results <- Artifact{PageIndex: job.PageIndex, Err: fmt.Errorf("renderpool: %w", err)}
			return
		}
		defer p.sem.Release(1)

		path, err := encode(job)
		p.results <- Artifact{PageIndex: job.PageIndex, Path: path, Err: err}
	}()
}

// Results is the channel of completed jobs, delivered in completion
// order, not submission order. Callers that submitted N jobs must receive
// exactly N results before assuming the pool is drained.
func (p *Pool) Results() <-chan Artifact {
	return p.results
}

func encode(job Job) (string, error) {
	switch {
	case job.Kind == events.OutputImage:
		// No subprocess: the PNG itself is the per-page artifact.
		return job.PNGPath, nil

	case job.OCRLang != "":
		outPath := job.OutputBase + ".pdf"
		cmd := exec.Command("tesseract", job.PNGPath, job.OutputBase, "-l", job.OCRLang, "--dpi", "70", "pdf")
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("renderpool: tesseract failed: %w (%s)", err, out)
		}
		return outPath, nil

	default:
		outPath := job.OutputBase + ".pdf"
		cmd := exec.Command("gm", "convert", job.PNGPath, outPath)
		if out, err := cmd.CombinedOutput(); err != nil {
			return "", fmt.Errorf("renderpool: raster-to-pdf failed: %w (%s)", err, out)
		}
		return outPath, nil
	}
}
