package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spherical/doc-converter/internal/domain"
)

// LibreOffice drives soffice in headless mode.
type LibreOffice struct {
	binary string
}

// NewLibreOffice creates a driver for the given soffice binary.
func NewLibreOffice(binary string) *LibreOffice {
	if binary == "" {
		binary = "soffice"
	}
	return &LibreOffice{binary: binary}
}

// Name is the engine name reported by health checks.
func (l *LibreOffice) Name() string { return "libreoffice" }

// Available reports whether soffice is on PATH.
func (l *LibreOffice) Available() bool {
	return (&Command{Binary: l.binary}).Available()
}

// ConvertOptions selects the export filter and optional import filter.
type ConvertOptions struct {
	// ConvertTo is passed to --convert-to, e.g. `docx:"MS Word 2007 XML"` or "pdf".
	ConvertTo string
	// InFilter is passed to --infilter when non-empty, e.g. "writer_pdf_import".
	InFilter string
	Timeout  time.Duration
}

// Convert runs one conversion into outDir and returns the produced file path.
// Each run uses its own profile directory so concurrent conversions do not
// contend for the user installation lock.
func (l *LibreOffice) Convert(ctx context.Context, input, outDir string, opts ConvertOptions) (string, error) {
	profile, err := os.MkdirTemp("", "lo-profile-"+uuid.NewString()[:8]+"-*")
	if err != nil {
		return "", domain.StorageError("failed to create office profile directory", err)
	}
	defer os.RemoveAll(profile)

	args := []string{
		"--headless", "--invisible", "--nologo", "--norestore", "--nodefault", "--nolockcheck",
		"-env:UserInstallation=file://" + filepath.ToSlash(profile),
	}
	if opts.InFilter != "" {
		args = append(args, "--infilter="+opts.InFilter)
	}
	args = append(args, "--convert-to", opts.ConvertTo, "--outdir", outDir, input)

	cmd := &Command{Binary: l.binary, Timeout: opts.Timeout}
	if _, err := cmd.Run(ctx, outDir, args...); err != nil {
		return "", err
	}

	ext := opts.ConvertTo
	if i := strings.IndexByte(ext, ':'); i >= 0 {
		ext = ext[:i]
	}
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	out := filepath.Join(outDir, stem+"."+ext)

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		return "", domain.StrategyError(fmt.Sprintf("%s produced no %s output", l.binary, ext), err)
	}
	return out, nil
}
