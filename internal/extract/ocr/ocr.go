// Package ocr recognizes text on scanned PDF pages by rasterizing the page with
// poppler's pdftoppm and running tesseract over the image.
package ocr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config controls rasterization and recognition.
type Config struct {
	PdftoppmBin  string
	TesseractBin string
	Languages    []string
	DPI          int
	Timeout      time.Duration
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdout io.Writer) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// Engine runs OCR on the first page of a PDF.
type Engine struct {
	cfg    Config
	exec   executor
	logger *zap.Logger
}

// New builds an Engine backed by the local binaries.
func New(cfg Config, logger *zap.Logger) *Engine {
	return newEngine(cfg, &osExecutor{}, logger)
}

func newEngine(cfg Config, exec executor, logger *zap.Logger) *Engine {
	if cfg.PdftoppmBin == "" {
		cfg.PdftoppmBin = "pdftoppm"
	}
	if cfg.TesseractBin == "" {
		cfg.TesseractBin = "tesseract"
	}
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"eng", "san"}
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, exec: exec, logger: logger}
}

// Available reports whether both binaries are on PATH.
func (e *Engine) Available() bool {
	for _, bin := range []string{e.cfg.PdftoppmBin, e.cfg.TesseractBin} {
		if _, err := e.exec.LookPath(bin); err != nil {
			return false
		}
	}
	return true
}

// FirstPageText returns the recognized text of page one, or "" on any failure.
func (e *Engine) FirstPageText(ctx context.Context, pdfPath string) string {
	text, err := e.firstPageText(ctx, pdfPath)
	if err != nil {
		e.logger.Warn("ocr failed", zap.String("path", pdfPath), zap.Error(err))
		return ""
	}
	return text
}

func (e *Engine) firstPageText(ctx context.Context, pdfPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	tmp, err := os.MkdirTemp("", "harvester-ocr-*")
	if err != nil {
		return "", fmt.Errorf("create ocr workspace: %w", err)
	}
	defer os.RemoveAll(tmp)

	prefix := filepath.Join(tmp, "page")
	args := []string{
		"-f", "1", "-l", "1",
		"-r", strconv.Itoa(e.cfg.DPI),
		"-png", "-singlefile",
		pdfPath, prefix,
	}
	if err := e.exec.Run(ctx, e.cfg.PdftoppmBin, args, io.Discard); err != nil {
		return "", fmt.Errorf("rasterize first page: %w", err)
	}
	image := prefix + ".png"
	if _, err := os.Stat(image); err != nil {
		return "", fmt.Errorf("rasterized page missing: %w", err)
	}

	var out bytes.Buffer
	args = []string{image, "stdout", "-l", strings.Join(e.cfg.Languages, "+")}
	if err := e.exec.Run(ctx, e.cfg.TesseractBin, args, &out); err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(out.String()), nil
}
