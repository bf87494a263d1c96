// Package controller implements the trusted side of the conversion
// session: it spawns the worker, feeds it files, reads back its page
// stream, and assembles each file's pages into the one trusted artifact
// the caller asked for. Structured as the teacher's three-stage pipeline
// (encryption_pipeline.go's readStage/executeStage/writeStage), generalized
// from fixed worker-pool channels to a transmitter goroutine, this main
// fiber, and the renderpool's own internal goroutines.
package controller

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/neowutran/qconvert/internal/assemble"
	"github.com/neowutran/qconvert/internal/config"
	"github.com/neowutran/qconvert/internal/events"
	"github.com/neowutran/qconvert/internal/guard"
	"github.com/neowutran/qconvert/internal/renderpool"
	"github.com/neowutran/qconvert/internal/transport"
	"github.com/neowutran/qconvert/internal/wire"
)

// FileJob is handed from the transmitter to the main fiber once a file's
// bytes have been fully written to the worker's stdin.
type FileJob struct {
	SourcePath string
	ScratchDir string
}

// Session runs one conversion end to end and reports progress on an
// event channel.
type Session struct {
	params config.Parameters
	events chan events.ConvertEvent
}

// New validates params and returns a Session ready to Run.
func New(params config.Parameters) (*Session, error) {
	if err := config.Normalize(&params); err != nil {
		return nil, err
	}
	return &Session{
		params: params,
		events: make(chan events.ConvertEvent, 64),
	}, nil
}

// Events returns the stream of progress/failure records. The caller must
// drain it concurrently with Run, or Run will block once the buffer
// fills.
func (s *Session) Events() <-chan events.ConvertEvent {
	return s.events
}

// Run spawns workerName (with workerArgs) as the conversion worker,
// streams every configured file through it, and assembles the results.
// A non-nil error here means the session itself aborted (transport broke,
// a hard cap was breached, or the worker violated the output contract).
// An individual file failing surfaces only as a Failure event while the
// session continues, so Run can return nil even though some files failed.
func (s *Session) Run(ctx context.Context, workerName string, workerArgs []string) error {
	defer close(s.events)

	worker, err := transport.Spawn(workerName, workerArgs, s.params.ForwardWorkerStderr)
	if err != nil {
		return fmt.Errorf("controller: could not spawn worker: %w", err)
	}

	pool := renderpool.New(ctx, s.params.EffectivePoolSize())

	jobs := make(chan *FileJob)
	transmitErr := make(chan error, 1)
	go s.transmit(worker, jobs, transmitErr)

	reader := bufio.NewReader(worker.Stdout())

	var sessionErr error
	for job := range jobs {
		if sessionErr != nil {
			// Session already aborted; drain the remaining jobs so the
			// transmitter (blocked sending on jobs) can finish and close
			// its channel, then remove the scratch dirs it already made.
			_ = os.RemoveAll(job.ScratchDir)
			continue
		}

		if err := s.processFile(reader, pool, job); err != nil {
			s.events <- events.NewFailure(job.SourcePath, err.Error())
			if isSessionFatal(err) {
				sessionErr = err
				_ = worker.Kill()
			}
		}
		_ = os.RemoveAll(job.ScratchDir)
	}

	if err := <-transmitErr; err != nil && sessionErr == nil {
		sessionErr = err
	}

	if waitErr := worker.Wait(); waitErr != nil && sessionErr == nil {
		sessionErr = waitErr
	}

	return sessionErr
}

// isSessionFatal reports whether err should abort the whole session
// rather than just the file it occurred on, per spec.md §7's propagation
// policy: cap breaches, transport breaks and output-contract violations
// leave the wire state undefined for everything still in flight.
func isSessionFatal(err error) bool {
	return errors.Is(err, ErrCapExceeded) ||
		errors.Is(err, ErrTransportBroken) ||
		errors.Is(err, ErrInvalidOutputContract)
}

func (s *Session) transmit(worker *transport.Worker, jobs chan<- *FileJob, transmitErr chan<- error) {
	defer close(jobs)
	stdin := worker.Stdin()
	defer func() { _ = worker.CloseStdin() }()

	if err := wire.WriteLine(stdin, s.params.DefaultPassword); err != nil {
		transmitErr <- fmt.Errorf("%w: could not write password preamble: %v", ErrTransportBroken, err)
		return
	}
	if err := wire.WriteDecimalLine(stdin, uint64(len(s.params.Files))); err != nil {
		transmitErr <- fmt.Errorf("%w: could not write file count preamble: %v", ErrTransportBroken, err)
		return
	}

	for _, sourcePath := range s.params.Files {
		job, err := s.transmitOneFile(stdin, sourcePath)
		if err != nil {
			transmitErr <- err
			return
		}
		jobs <- job
	}

	transmitErr <- nil
}

// transmitOneFile creates the per-file scratch dir and writes sourcePath's
// bytes onto stdin, returning the FileJob that transfers ownership of the
// scratch dir to the main fiber. On any error the scratch dir (if created)
// is removed here, since ownership never transfers in that case.
func (s *Session) transmitOneFile(stdin io.Writer, sourcePath string) (*FileJob, error) {
	scratchDir, err := os.MkdirTemp("", "qconvert_client_")
	if err != nil {
		return nil, fmt.Errorf("%w: could not create scratch dir: %v", ErrFilesystem, err)
	}
	ownsScratchDir := true
	defer func() {
		if ownsScratchDir {
			_ = os.RemoveAll(scratchDir)
		}
	}()

	s.events <- events.NewFileQueued(sourcePath)

	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: could not read source file %s: %v", ErrFilesystem, sourcePath, err)
	}

	if err := wire.WriteDecimalLine(stdin, uint64(len(data))); err != nil {
		return nil, fmt.Errorf("%w: could not write file length: %v", ErrTransportBroken, err)
	}
	if err := wire.WriteAll(stdin, data); err != nil {
		return nil, fmt.Errorf("%w: could not write file body: %v", ErrTransportBroken, err)
	}

	ownsScratchDir = false
	return &FileJob{SourcePath: sourcePath, ScratchDir: scratchDir}, nil
}

func (s *Session) processFile(reader *bufio.Reader, pool *renderpool.Pool, job *FileJob) error {
	pageCount, err := wire.ReadUint16LE(reader)
	if err != nil {
		return fmt.Errorf("%w: could not read file header: %v", ErrTransportBroken, err)
	}
	if err := guard.CheckPageCount(pageCount); err != nil {
		return fmt.Errorf("%w: %v", ErrCapExceeded, err)
	}

	tagByte, err := wire.ReadExact(reader, 1)
	if err != nil {
		return fmt.Errorf("%w: could not read output kind: %v", ErrTransportBroken, err)
	}
	outKind, err := events.ParseOutputKind(tagByte[0])
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutputContract, err)
	}
	if outKind == events.OutputImage && pageCount != 1 {
		return fmt.Errorf("%w: image file reported %d pages, expected 1", ErrInvalidOutputContract, pageCount)
	}

	s.events <- events.NewFileInfo(job.SourcePath, outKind, pageCount)

	for pageIndex := uint16(0); pageIndex < pageCount; pageIndex++ {
		pngPath, err := s.receivePage(reader, job.ScratchDir, pageIndex)
		if err != nil {
			return err
		}
		pool.Submit(renderpool.Job{
			PageIndex:  pageIndex,
			PNGPath:    pngPath,
			OutputBase: filepath.Join(job.ScratchDir, fmt.Sprintf("page_%05d", pageIndex)),
			Kind:       outKind,
			OCRLang:    s.params.OCRLanguage,
		})
	}

	pagePaths := make([]string, pageCount)
	var pageErr error
	for received := uint16(0); received < pageCount; received++ {
		artifact := <-pool.Results()
		if artifact.Err != nil {
			// Keep receiving so no result of this file is left on the
			// pool's channel for the next file to pick up.
			if pageErr == nil {
				pageErr = fmt.Errorf("%w: %v", ErrSubprocessFailed, artifact.Err)
			}
			continue
		}
		pagePaths[artifact.PageIndex] = artifact.Path
		s.events <- events.NewPageConverted(job.SourcePath, artifact.PageIndex)
	}
	if pageErr != nil {
		return pageErr
	}

	outputPath := trustedOutputPath(job.SourcePath, outKind)
	switch outKind {
	case events.OutputImage:
		if err := assemble.Image(pagePaths[0], outputPath); err != nil {
			return fmt.Errorf("%w: %v", ErrFilesystem, err)
		}
	default:
		if err := assemble.PDF(pagePaths, outputPath); err != nil {
			return fmt.Errorf("%w: %v", ErrFilesystem, err)
		}
	}

	s.events <- events.NewFileConverted(job.SourcePath)

	if err := s.finalizeSource(job.SourcePath); err != nil {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}

	return nil
}

// receivePage reads one PageRecord and writes it to a scratch PNG,
// returning its path.
func (s *Session) receivePage(reader *bufio.Reader, scratchDir string, pageIndex uint16) (string, error) {
	width, err := wire.ReadUint16LE(reader)
	if err != nil {
		return "", fmt.Errorf("%w: could not read page width: %v", ErrTransportBroken, err)
	}
	height, err := wire.ReadUint16LE(reader)
	if err != nil {
		return "", fmt.Errorf("%w: could not read page height: %v", ErrTransportBroken, err)
	}
	if err := guard.CheckPageDimensions(width, height); err != nil {
		return "", fmt.Errorf("%w: %v", ErrCapExceeded, err)
	}

	pixelCount := int(width) * int(height) * 4
	pixels, err := wire.ReadExact(reader, pixelCount)
	if err != nil {
		return "", fmt.Errorf("%w: could not read page pixels: %v", ErrTransportBroken, err)
	}

	rgba := &image.RGBA{
		Pix:    pixels,
		Stride: int(width) * 4,
		Rect:   image.Rect(0, 0, int(width), int(height)),
	}

	pngPath := filepath.Join(scratchDir, fmt.Sprintf("page_%05d.png", pageIndex))
	out, err := os.Create(pngPath)
	if err != nil {
		return "", fmt.Errorf("%w: could not create page scratch file: %v", ErrFilesystem, err)
	}
	defer out.Close()

	if err := png.Encode(out, rgba); err != nil {
		return "", fmt.Errorf("%w: could not encode page png: %v", ErrFilesystem, err)
	}

	return pngPath, nil
}

// finalizeSource deletes sourcePath in place, or archives a copy of it
// first, per spec.md §4.6 step 5: the archive write always precedes the
// delete.
func (s *Session) finalizeSource(sourcePath string) error {
	if !s.params.InPlace {
		archivePath := filepath.Join(s.params.Archive, filepath.Base(sourcePath))
		if err := copyFile(sourcePath, archivePath); err != nil {
			return fmt.Errorf("could not archive source: %w", err)
		}
	}
	if err := os.Remove(sourcePath); err != nil {
		return fmt.Errorf("could not remove source after conversion: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o700); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// trustedOutputPath returns <dir>/<stem>.trusted.<ext>, per spec.md §6's
// on-disk artifact contract.
func trustedOutputPath(sourcePath string, kind events.OutputKind) string {
	dir := filepath.Dir(sourcePath)
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+".trusted."+kind.Extension())
}
