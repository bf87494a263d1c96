// Package producer implements the worker side of the trust boundary: it
// reads files off the controller's textual preamble, classifies each by
// content, decomposes it into pages, and emits the binary reply stream the
// controller decodes. Every subprocess it shells out to is one the
// spec treats as untrusted-side tooling (office suite, PDF toolkit, raster
// tooling) — this package never trusts its own inputs either; a failed
// subprocess fails the whole worker process, since the controller has no
// way to ask it to resynchronize mid-stream.
package producer

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/neowutran/qconvert/internal/events"
	"github.com/neowutran/qconvert/internal/mimesniff"
	"github.com/neowutran/qconvert/internal/wire"
)

// PasswordPrompter asks the end user (via whatever modal the worker's
// environment provides — zenity in the reference deployment) for a
// password and returns what they typed.
type PasswordPrompter func() (string, error)

// Producer runs the worker-side conversion loop.
type Producer struct {
	Stdout  io.Writer
	Prompt  PasswordPrompter
	workDir string
}

// New creates a Producer that writes its reply stream to stdout and
// prompts for passwords via prompt.
func New(stdout io.Writer, prompt PasswordPrompter) *Producer {
	return &Producer{Stdout: stdout, Prompt: prompt}
}

// Run reads the full client preamble from stdin and processes every file
// in order, matching original_source/server/src/main.rs's main loop. Any
// failure on a file (audio/video input, a subprocess failure, or a
// scratch filesystem error) is returned and aborts the whole worker
// process, since the controller cannot resynchronize a stream that stops
// mid-file.
func (p *Producer) Run(stdin io.Reader) error {
	scratchDir, err := os.MkdirTemp("", "qubes_convert_")
	if err != nil {
		return fmt.Errorf("producer: could not create worker scratch dir: %w", err)
	}
	p.workDir = scratchDir
	defer os.RemoveAll(scratchDir)

	reader := bufio.NewReader(stdin)

	defaultPassword, err := wire.ReadLine(reader)
	if err != nil {
		return fmt.Errorf("producer: could not read default password preamble: %w", err)
	}

	numFiles, err := wire.ReadDecimalLine(reader)
	if err != nil {
		return fmt.Errorf("producer: could not read file count preamble: %w", err)
	}

	for fileID := uint64(0); fileID < numFiles; fileID++ {
		if err := p.processOneFile(reader, defaultPassword, fileID); err != nil {
			return err
		}
	}

	return nil
}

func (p *Producer) processOneFile(reader *bufio.Reader, defaultPassword string, fileID uint64) error {
	size, err := wire.ReadDecimalLine(reader)
	if err != nil {
		return fmt.Errorf("producer: could not read file length preamble: %w", err)
	}

	buf, err := wire.ReadExact(reader, int(size))
	if err != nil {
		return fmt.Errorf("producer: could not read file body: %w", err)
	}

	fileWorkDir := filepath.Join(p.workDir, fmt.Sprintf("%d", fileID))
	if err := os.MkdirAll(fileWorkDir, 0o700); err != nil {
		return fmt.Errorf("producer: could not create per-file scratch dir: %w", err)
	}
	defer os.RemoveAll(fileWorkDir)

	kind := mimesniff.Classify(buf)

	switch kind {
	case mimesniff.KindAudio, mimesniff.KindVideo:
		return fmt.Errorf("producer: %s input is not supported", kind)
	}

	sourcePath := filepath.Join(fileWorkDir, "source")
	if err := os.WriteFile(sourcePath, buf, 0o600); err != nil {
		return fmt.Errorf("producer: could not write file to scratch: %w", err)
	}

	var pagePaths []string
	var outputKind events.OutputKind

	switch kind {
	case mimesniff.KindImage:
		outputKind = events.OutputImage
		pagePaths, err = convertImage(sourcePath)
	case mimesniff.KindPDF:
		outputKind = events.OutputPDF
		pagePaths, err = p.convertPDF(sourcePath, fileWorkDir, defaultPassword)
	default:
		outputKind = events.OutputPDF
		pagePaths, err = p.convertOffice(sourcePath, fileWorkDir, defaultPassword)
	}
	if err != nil {
		return fmt.Errorf("producer: conversion failed: %w", err)
	}

	if outputKind == events.OutputImage && len(pagePaths) != 1 {
		return fmt.Errorf("producer: image output must be exactly one page, got %d", len(pagePaths))
	}

	if err := wire.WriteUint16LE(p.Stdout, uint16(len(pagePaths))); err != nil {
		return fmt.Errorf("producer: could not write file header: %w", err)
	}
	if err := wire.WriteAll(p.Stdout, []byte{byte(outputKind)}); err != nil {
		return fmt.Errorf("producer: could not write file header: %w", err)
	}

	for _, pagePath := range pagePaths {
		if err := sendPage(p.Stdout, pagePath); err != nil {
			return fmt.Errorf("producer: could not send page %s: %w", pagePath, err)
		}
	}

	return nil
}

// scratchSubdir creates and returns a fresh uniquely-named subdirectory of
// dir.
func scratchSubdir(dir string) (string, error) {
	sub := filepath.Join(dir, uuid.NewString())
	if err := os.MkdirAll(sub, 0o700); err != nil {
		return "", err
	}
	return sub, nil
}
