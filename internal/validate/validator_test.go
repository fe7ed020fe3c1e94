package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_AcceptsValidInputs(t *testing.T) {
	v := NewValidator(0)

	pdfPath := testutil.WriteFile(t, "doc.pdf", testutil.PDF(testutil.TextPages(1)))
	assert.NoError(t, v.Validate(pdfPath, domain.FormatPDF))

	docxPath := testutil.WriteFile(t, "doc.docx", testutil.DOCX([]testutil.Paragraph{{Text: "hi"}}, 1))
	assert.NoError(t, v.Validate(docxPath, domain.FormatDOCX))
}

func TestValidate_DistinctReasons(t *testing.T) {
	v := NewValidator(0)
	dir := t.TempDir()

	oversize := filepath.Join(dir, "big.pdf")
	f, err := os.Create(oversize)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(60*1024*1024))
	require.NoError(t, f.Close())

	tests := []struct {
		name   string
		path   string
		format domain.Format
		want   error
	}{
		{"empty path", "", domain.FormatPDF, domain.ErrInputMissing},
		{"missing file", filepath.Join(dir, "nope.pdf"), domain.FormatPDF, domain.ErrInputMissing},
		{"directory", dir, domain.FormatPDF, domain.ErrInputMissing},
		{"oversize", oversize, domain.FormatPDF, domain.ErrInputTooLarge},
		{"wrong extension", testutil.WriteFile(t, "doc.txt", []byte("%PDF-1.4")), domain.FormatPDF, domain.ErrFormatMismatch},
		{"wrong magic", testutil.WriteFile(t, "fake.pdf", []byte("GIF89a....")), domain.FormatPDF, domain.ErrFormatMismatch},
		{"pdf magic for docx", testutil.WriteFile(t, "fake.docx", []byte("%PDF-1.4")), domain.FormatDOCX, domain.ErrFormatMismatch},
		{"corrupt pdf", testutil.WriteFile(t, "corrupt.pdf", []byte("%PDF-1.4\ngarbage")), domain.FormatPDF, domain.ErrUnparseable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.path, tt.format)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, domain.ErrorTypeValidation, domain.TypeOf(err))
		})
	}
}

func TestValidate_OversizeMessage(t *testing.T) {
	err := NewValidator(0).CheckSize(60 * 1024 * 1024)
	require.Error(t, err)
	assert.Equal(t, "File size exceeds 50MB limit", domain.Reason(err))
}

func TestValidate_StructureCheckWrapsForeignErrors(t *testing.T) {
	v := NewValidator(0).WithCheck(domain.FormatPDF, func(string) error { return errors.New("zero pages") })
	path := testutil.WriteFile(t, "doc.pdf", []byte("%PDF-1.7 whatever"))

	err := v.Validate(path, domain.FormatPDF)
	assert.ErrorIs(t, err, domain.ErrUnparseable)
	assert.Equal(t, "Corrupt PDF file", domain.Reason(err))
}
