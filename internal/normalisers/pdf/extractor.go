// Package pdf extracts plain text from PDF files.
//
// Text is read in-process with github.com/ledongthuc/pdf. When that fails or
// finds no text, and pdftotext (poppler) is installed, the file is passed to
// pdftotext instead.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/custodia-labs/pdfrag/internal/core/domain"
	"github.com/custodia-labs/pdfrag/internal/core/ports/driven"
	"github.com/custodia-labs/pdfrag/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// ErrPDFToolNotFound indicates pdftotext is not installed.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

const pdfToolName = "pdftotext"

// CommandRunner runs an external command and returns its standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor reads the text of PDF files.
type Extractor struct {
	runner   CommandRunner
	lookPath func(file string) (string, error)
}

// New creates an extractor that falls back to the installed pdftotext.
func New() *Extractor {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates an extractor whose fallback uses runner.
// A nil runner disables the fallback.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{
		runner:   runner,
		lookPath: exec.LookPath,
	}
}

// Extract returns the text of the PDF at path. A readable PDF without a text
// layer yields an empty string.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", domain.Permanent(fmt.Errorf("%w: %w", domain.ErrExtraction, err))
	}
	if info.IsDir() {
		return "", domain.Permanent(fmt.Errorf("%w: %s is a directory", domain.ErrExtraction, path))
	}

	text, readErr := readText(path)
	if readErr == nil && strings.TrimSpace(text) != "" {
		return clean(text), nil
	}

	fallback, toolErr := e.runTool(ctx, path)
	if toolErr == nil {
		return clean(fallback), nil
	}
	if !errors.Is(toolErr, ErrPDFToolNotFound) {
		logger.Debug("pdf: %s fallback for %s: %v", pdfToolName, path, toolErr)
	}

	if readErr != nil {
		return "", domain.Permanent(fmt.Errorf("%w: %s: %w", domain.ErrExtraction, path, readErr))
	}
	return "", nil
}

// readText extracts the text layer of every page in order.
func readText(path string) (text string, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// runTool extracts text with pdftotext.
func (e *Extractor) runTool(ctx context.Context, path string) (string, error) {
	if e.runner == nil {
		return "", ErrPDFToolNotFound
	}
	if _, err := e.lookPath(pdfToolName); err != nil {
		return "", ErrPDFToolNotFound
	}

	out, err := e.runner.Run(ctx, pdfToolName, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return "", errors.New("pdftotext found no text")
	}
	return string(out), nil
}

// clean normalises line endings and drops NUL and form-feed characters.
func clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.Map(func(r rune) rune {
		switch r {
		case 0, '\f':
			return -1
		case '\r':
			return '\n'
		}
		return r
	}, text)
	return strings.TrimSpace(text)
}

// CheckAvailable returns nil if pdftotext is installed.
func CheckAvailable() error {
	if _, err := exec.LookPath(pdfToolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions returns how to install the pdftotext fallback.
func InstallInstructions() string {
	return `pdftotext is optional and improves extraction of unusual PDFs.

Install poppler:
  macOS:         brew install poppler
  Debian/Ubuntu: sudo apt install poppler-utils
  Fedora:        sudo dnf install poppler-utils`
}
