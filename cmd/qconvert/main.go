// Command qconvert is the trusted side of the sanitization pipeline: it
// spawns the conversion worker, streams in the files the caller named,
// and reports progress as each page comes back converted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/pborman/getopt/v2"
	"golang.org/x/term"

	"github.com/neowutran/qconvert/internal/config"
	"github.com/neowutran/qconvert/internal/controller"
	"github.com/neowutran/qconvert/internal/events"
)

var (
	gVersion      = "0"
	gGitCommit    = "0"
	gLoggerStdout = log.New(os.Stdout, "", 0)
	gLoggerStderr = log.New(os.Stderr, "", 0)
)

const defaultWorkerCommand = "qconvert-worker"

func main() {
	params, workerCommand, err := parseArgs()
	if err != nil {
		gLoggerStderr.Println("qconvert:", err)
		os.Exit(1)
	}

	session, err := controller.New(params)
	if err != nil {
		gLoggerStderr.Println("qconvert: invalid configuration:", err)
		os.Exit(1)
	}

	failed := make([]string, 0)
	done := make(chan struct{})
	go consumeEvents(session, &failed, done)

	err = session.Run(context.Background(), workerCommand, nil)
	<-done

	if err != nil {
		gLoggerStderr.Println("qconvert: session aborted:", err)
		os.Exit(1)
	}

	if len(failed) > 0 {
		gLoggerStdout.Println("The following files could not be converted:")
		for _, f := range failed {
			gLoggerStdout.Println(" -", f)
		}
		os.Exit(1)
	}
}

// consumeEvents drives one progress bar per file, reusing it across the
// FileInfo/PageConverted/FileConverted-or-Failure sequence for that file.
// Percentage arithmetic is kept in int (64-bit on every platform Go
// targets) throughout, never a narrower cast.
func consumeEvents(session *controller.Session, failed *[]string, done chan<- struct{}) {
	defer close(done)

	var bar *pb.ProgressBar
	var currentFile string
	var pageCount int
	var pagesDone int

	finishBar := func() {
		if bar != nil {
			bar.Finish()
			bar = nil
		}
	}

	for ev := range session.Events() {
		switch ev.Kind {
		case events.FileQueued:
			gLoggerStdout.Printf("queued: %s\n", ev.File)

		case events.FileInfo:
			currentFile = ev.File
			pageCount = int(ev.PageCount)
			pagesDone = 0
			if pageCount == 0 {
				pageCount = 1
			}
			gLoggerStdout.Printf("converting: %s (%d pages)\n", currentFile, pageCount)
			bar = pb.StartNew(pageCount)

		case events.PageConverted:
			pagesDone++
			if bar != nil {
				bar.Increment()
			}
			percent := pagesDone * 100 / pageCount
			gLoggerStdout.Printf("%s: %d%% (%d/%d pages)\n", currentFile, percent, pagesDone, pageCount)

		case events.FileConverted:
			finishBar()
			gLoggerStdout.Printf("done: %s\n", ev.File)

		case events.Failure:
			finishBar()
			gLoggerStderr.Printf("failed: %s: %s\n", ev.File, ev.Message)
			*failed = append(*failed, ev.File)
		}
	}
}

func parseArgs() (config.Parameters, string, error) {
	var params config.Parameters
	var workerCommand string
	var promptPassword bool
	var help bool
	var version bool

	getopt.FlagLong(&help, "help", '?', "Display help")
	getopt.FlagLong(&version, "version", 0, "Display version information")
	getopt.FlagLong(&params.InPlace, "in-place", 'i', "Delete originals instead of archiving them")
	getopt.FlagLong(&params.Archive, "archive", 'a', "Folder to move originals into (default $HOME/QubesUntrusted/)")
	getopt.FlagLong(&promptPassword, "password", 'p', "Prompt for a default document password")
	getopt.FlagLong(&params.OCRLanguage, "ocr", 'l', "Tesseract language code; enables OCR text layers")
	getopt.FlagLong(&params.MaxPagesInParallel, "max-parallel", 'm', "Maximum concurrent page encoders")
	getopt.FlagLong(&params.ForwardWorkerStderr, "forward-worker-stderr", 0, "Forward the worker's stderr to this process's stderr")
	getopt.FlagLong(&workerCommand, "worker", 0, "Worker command to spawn (default qconvert-worker)")

	getopt.Parse()

	if help {
		showHelp()
		os.Exit(0)
	}
	if version {
		showVersionInfo()
		os.Exit(0)
	}

	if workerCommand == "" {
		workerCommand = defaultWorkerCommand
	}

	if promptPassword {
		password, err := readPasswordFromTerminal()
		if err != nil {
			return params, "", fmt.Errorf("could not read password: %w", err)
		}
		params.DefaultPassword = password
	}

	params.Files = getopt.Args()
	if len(params.Files) == 0 {
		return params, "", fmt.Errorf("no files specified")
	}

	return params, workerCommand, nil
}

func readPasswordFromTerminal() (string, error) {
	fmt.Fprint(os.Stderr, "Default document password: ")
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

func showHelp() {
	gLoggerStdout.Println("\nExample: qconvert [options] file1 [file2 ...]")
	gLoggerStdout.Println("\nqconvert --in-place --ocr=eng document.pdf photo.png")
	gLoggerStdout.Println("")
	getopt.Usage()
}

func showVersionInfo() {
	gLoggerStdout.Println("version:", gVersion, "commit:", gGitCommit)
}
