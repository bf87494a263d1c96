// Package config holds ConvertParameters, the bundle a UI hands the
// controller once per session, and the defaulting logic around it. The
// shape and the "initialize then validate" split follow the teacher's
// EncryptorOptions/initializeOptions/validateOpts pattern.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Parameters configures one conversion session.
type Parameters struct {
	Files               []string
	InPlace             bool
	Archive             string
	DefaultPassword     string
	MaxPagesInParallel  int
	OCRLanguage         string
	ForwardWorkerStderr bool
}

// DefaultArchiveFolder returns $HOME/QubesUntrusted/, matching
// original_source/src/client_core.rs::default_archive_folder.
func DefaultArchiveFolder() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.New("config: could not determine home directory for default archive")
	}
	return filepath.Join(home, "QubesUntrusted") + string(filepath.Separator), nil
}

// Normalize fills in defaults and clamps values the same way
// processOpts/validateOpts do for EncryptorOptions: blank becomes the
// documented default, out-of-range becomes the nearest bound.
func Normalize(p *Parameters) error {
	if p == nil {
		return errors.New("config: parameters is nil")
	}

	if len(p.Files) == 0 {
		return errors.New("config: no files specified")
	}

	if strings.Contains(p.DefaultPassword, "\n") {
		return errors.New("config: default password must not contain a newline")
	}

	if strings.TrimSpace(p.Archive) == "" {
		archive, err := DefaultArchiveFolder()
		if err != nil {
			return err
		}
		p.Archive = archive
	} else if !strings.HasSuffix(p.Archive, string(filepath.Separator)) {
		p.Archive += string(filepath.Separator)
	}

	if p.MaxPagesInParallel < 1 {
		p.MaxPagesInParallel = 1
	}

	// Raised to the logical CPU count only when OCR is disabled: OCR
	// subprocesses are memory-heavier, so the original per-page cap is
	// kept as a ceiling instead. Documented but intentionally not
	// tunable beyond this, per the teacher's terse one-rationale-line
	// comments.
	if p.OCRLanguage == "" && p.MaxPagesInParallel < runtime.NumCPU() {
		p.MaxPagesInParallel = runtime.NumCPU()
	}

	return nil
}

// EffectivePoolSize is what the render pool should use as its permit
// count, derived once Normalize has run.
func (p Parameters) EffectivePoolSize() int {
	if p.MaxPagesInParallel < 1 {
		return 1
	}
	return p.MaxPagesInParallel
}
