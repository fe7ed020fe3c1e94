package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/engine"
)

// Default engine budgets.
const (
	DefaultLayoutTimeout = 300 * time.Second
	DefaultOfficeTimeout = 60 * time.Second
)

// EnhancedLayout imports the PDF into the office suite's word processor and
// exports it as DOCX, keeping positioned layout where the source has a text layer.
type EnhancedLayout struct {
	office  OfficeEngine
	timeout time.Duration
}

func NewEnhancedLayout(office OfficeEngine, timeout time.Duration) *EnhancedLayout {
	if timeout <= 0 {
		timeout = DefaultLayoutTimeout
	}
	return &EnhancedLayout{office: office, timeout: timeout}
}

func (s *EnhancedLayout) Name() string { return NameEnhancedLayout }

func (s *EnhancedLayout) Attempt(ctx context.Context, job Job) Outcome {
	opts := engine.ConvertOptions{
		ConvertTo: `docx:"MS Word 2007 XML"`,
		InFilter:  "writer_pdf_import",
		Timeout:   s.timeout,
	}
	return officeAttempt(ctx, s.Name(), s.office, job, opts, "Layout-preserving conversion")
}

// NativeOffice converts Word documents to PDF with the office suite.
type NativeOffice struct {
	office  OfficeEngine
	timeout time.Duration
}

func NewNativeOffice(office OfficeEngine, timeout time.Duration) *NativeOffice {
	if timeout <= 0 {
		timeout = DefaultOfficeTimeout
	}
	return &NativeOffice{office: office, timeout: timeout}
}

func (s *NativeOffice) Name() string { return NameNativeOffice }

func (s *NativeOffice) Attempt(ctx context.Context, job Job) Outcome {
	opts := engine.ConvertOptions{ConvertTo: "pdf", Timeout: s.timeout}
	return officeAttempt(ctx, s.Name(), s.office, job, opts, "LibreOffice conversion")
}

func officeAttempt(ctx context.Context, name string, office OfficeEngine, job Job, opts engine.ConvertOptions, message string) Outcome {
	outDir := filepath.Join(job.WorkDir, name)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Failure(name, domain.StorageError("failed to create engine output directory", err))
	}

	produced, err := office.Convert(ctx, job.Request.SourcePath, outDir, opts)
	if err != nil {
		return Failure(name, err)
	}
	if err := os.Rename(produced, job.OutputPath); err != nil {
		return Failure(name, domain.StorageError(fmt.Sprintf("failed to move %s output", name), err))
	}
	return Success(name, job.OutputPath, message)
}
