package producer

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"
)

const maxConcurrentRasterizers = 25

const toConvertFilename = "to_convert"

// convertPDF splits sourcePath into single-page PDFs and rasterizes each
// to PNG, capped at maxConcurrentRasterizers concurrent pdftocairo
// processes, reaped by polling — grounded on
// original_source/src/server.rs::convert_pdf, which this keeps the shape
// of deliberately: the worker side is untrusted tooling glue, not where
// Go's richer concurrency primitives buy anything over the reference poll
// loop.
func (p *Producer) convertPDF(sourcePath, workDir, defaultPassword string) ([]string, error) {
	if err := splitPDFIntoPages(sourcePath, workDir, defaultPassword, p.Prompt); err != nil {
		return nil, fmt.Errorf("could not split pdf into pages: %w", err)
	}

	pageFiles, err := filepath.Glob(filepath.Join(workDir, "pg_*.pdf"))
	if err != nil {
		return nil, fmt.Errorf("could not list split pages: %w", err)
	}
	sort.Strings(pageFiles)

	type running struct {
		cmd  *exec.Cmd
		done chan error
	}
	var inFlight []running
	var pngPaths []string

	// reap polls each in-flight process's done channel non-blockingly,
	// mirroring the reference implementation's try_wait poll loop; each
	// process has one goroutine blocked on its Wait that reports the exit
	// status on that channel.
	reap := func() ([]running, error) {
		remaining := inFlight[:0]
		var firstErr error
		for _, r := range inFlight {
			select {
			case err := <-r.done:
				if err != nil && firstErr == nil {
					firstErr = fmt.Errorf("pdftocairo process failed: %w", err)
				}
			default:
				remaining = append(remaining, r)
			}
		}
		return remaining, firstErr
	}

	for _, pagePDF := range pageFiles {
		for len(inFlight) >= maxConcurrentRasterizers {
			next, err := reap()
			if err != nil {
				return nil, err
			}
			inFlight = next
			if len(inFlight) >= maxConcurrentRasterizers {
				time.Sleep(100 * time.Millisecond)
			}
		}

		base := pagePDF[:len(pagePDF)-len(filepath.Ext(pagePDF))]
		cmd := exec.Command("pdftocairo", pagePDF, "-png", "-singlefile", base)
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("could not start pdftocairo: %w", err)
		}
		done := make(chan error, 1)
		go func(c *exec.Cmd, d chan error) { d <- c.Wait() }(cmd, done)
		inFlight = append(inFlight, running{cmd: cmd, done: done})
		pngPaths = append(pngPaths, base+".png")
	}

	for _, r := range inFlight {
		if err := <-r.done; err != nil {
			return nil, fmt.Errorf("pdftocairo process failed: %w", err)
		}
	}

	return pngPaths, nil
}

// splitPDFIntoPages shells to `pdftk <file> input_pw <password> burst`,
// retrying with a freshly-prompted password until it succeeds. Iterative,
// not recursive, per the REDESIGN note in SPEC_FULL.md §4.9.
func splitPDFIntoPages(sourcePath, workDir, password string, prompt PasswordPrompter) error {
	working := filepath.Join(workDir, toConvertFilename)
	if err := os.Rename(sourcePath, working); err != nil {
		return fmt.Errorf("could not stage pdf for splitting: %w", err)
	}

	for {
		cmd := exec.Command("pdftk", working, "input_pw", password, "burst")
		cmd.Dir = workDir
		if out, err := cmd.CombinedOutput(); err == nil {
			return nil
		} else if prompt == nil {
			return fmt.Errorf("pdftk burst failed and no password prompter is configured: %w (%s)", err, out)
		}

		next, promptErr := prompt()
		if promptErr != nil {
			return fmt.Errorf("could not obtain password: %w", promptErr)
		}
		password = next
	}
}
