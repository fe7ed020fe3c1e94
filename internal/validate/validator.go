// Package validate checks conversion inputs before any strategy runs.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spherical/doc-converter/internal/docx"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/pdf"
)

// DefaultMaxSize is the largest accepted input.
const DefaultMaxSize int64 = 50 * 1024 * 1024

var magic = map[domain.Format][]byte{
	domain.FormatPDF:  []byte("%PDF-"),
	domain.FormatDOCX: []byte("PK\x03\x04"),
}

// StructureCheck is the format-specific parse check run last.
type StructureCheck func(path string) error

// Validator provides input validation for conversion sources.
type Validator struct {
	maxSize int64
	checks  map[domain.Format]StructureCheck
}

// NewValidator creates a validator with the given size limit (0 selects the
// default) and the pdfcpu / OOXML structure checks.
func NewValidator(maxSize int64) *Validator {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Validator{
		maxSize: maxSize,
		checks: map[domain.Format]StructureCheck{
			domain.FormatPDF:  pdf.CheckStructure,
			domain.FormatDOCX: docx.CheckStructure,
		},
	}
}

// WithCheck replaces the structure check for a format.
func (v *Validator) WithCheck(format domain.Format, check StructureCheck) *Validator {
	v.checks[format] = check
	return v
}

// MaxSize returns the configured size limit in bytes.
func (v *Validator) MaxSize() int64 {
	return v.maxSize
}

// Validate runs, in order: presence, size, extension, magic bytes and the
// structure check. Each failure carries its own sentinel reason.
func (v *Validator) Validate(path string, format domain.Format) error {
	if strings.TrimSpace(path) == "" {
		return domain.ValidationError("No file provided", domain.ErrInputMissing)
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ValidationError("No file provided", domain.ErrInputMissing)
		}
		return domain.ValidationError("Cannot access uploaded file", fmt.Errorf("%w: %v", domain.ErrInputMissing, err))
	}
	if info.IsDir() {
		return domain.ValidationError("Upload is a directory, not a file", domain.ErrInputMissing)
	}

	if err := v.CheckSize(info.Size()); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != format.Extension() {
		return domain.ValidationError(
			fmt.Sprintf("Invalid file type %q: expected a %s file", ext, strings.ToUpper(string(format))),
			domain.ErrFormatMismatch)
	}

	if err := checkMagic(path, format); err != nil {
		return err
	}

	if check, ok := v.checks[format]; ok && check != nil {
		if err := check(path); err != nil {
			if domain.TypeOf(err) == domain.ErrorTypeValidation {
				return err
			}
			return domain.ValidationError(fmt.Sprintf("Corrupt %s file", strings.ToUpper(string(format))),
				fmt.Errorf("%w: %v", domain.ErrUnparseable, err))
		}
	}

	return nil
}

// CheckSize rejects sizes over the limit.
func (v *Validator) CheckSize(size int64) error {
	if size > v.maxSize {
		return domain.ValidationError(
			fmt.Sprintf("File size exceeds %dMB limit", v.maxSize/(1024*1024)),
			domain.ErrInputTooLarge)
	}
	return nil
}

func checkMagic(path string, format domain.Format) error {
	want, ok := magic[format]
	if !ok {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return domain.ValidationError("Cannot open uploaded file", fmt.Errorf("%w: %v", domain.ErrInputMissing, err))
	}
	defer f.Close()

	head := make([]byte, len(want))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, want) {
		return domain.ValidationError(
			fmt.Sprintf("File content is not a valid %s document", strings.ToUpper(string(format))),
			domain.ErrFormatMismatch)
	}
	return nil
}
