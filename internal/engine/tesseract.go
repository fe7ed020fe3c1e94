package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Tesseract recognises text in page images.
type Tesseract struct {
	binary  string
	lang    string
	dpi     int
	timeout time.Duration
}

// NewTesseract creates an OCR driver. timeout bounds a single page.
func NewTesseract(binary, lang string, dpi int, timeout time.Duration) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	if lang == "" {
		lang = "eng"
	}
	return &Tesseract{binary: binary, lang: lang, dpi: dpi, timeout: timeout}
}

// Name is the engine name reported by health checks.
func (t *Tesseract) Name() string { return "tesseract" }

// Available reports whether tesseract is on PATH.
func (t *Tesseract) Available() bool {
	return (&Command{Binary: t.binary}).Available()
}

// Recognize returns the text found in one image.
func (t *Tesseract) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout", "-l", t.lang}
	if t.dpi > 0 {
		args = append(args, "--dpi", fmt.Sprint(t.dpi))
	}

	cmd := &Command{Binary: t.binary, Timeout: t.timeout}
	out, err := cmd.Run(ctx, filepath.Dir(imagePath), args...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Version returns the first line of `tesseract --version`.
func (t *Tesseract) Version(ctx context.Context) (string, error) {
	cmd := &Command{Binary: t.binary, Timeout: 10 * time.Second}
	out, err := cmd.Run(ctx, "", "--version")
	if err != nil {
		return "", err
	}
	first, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(strings.TrimPrefix(first, "tesseract ")), nil
}
