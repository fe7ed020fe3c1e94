package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/pdf"
	"github.com/spherical/doc-converter/internal/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("SOFFICE_PATH", "docconvert-test-missing-soffice")
	t.Setenv("TESSERACT_PATH", "docconvert-test-missing-tesseract")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveFormats(t *testing.T) {
	tests := []struct {
		input, to    string
		source, want domain.Format
		wantErr      bool
	}{
		{input: "a.pdf", source: domain.FormatPDF, want: domain.FormatDOCX},
		{input: "a.PDF", to: "pptx", source: domain.FormatPDF, want: domain.FormatPPTX},
		{input: "a.pdf", to: "word", source: domain.FormatPDF, want: domain.FormatDOCX},
		{input: "a.docx", source: domain.FormatDOCX, want: domain.FormatPDF},
		{input: "a.docx", to: "pptx", wantErr: true},
		{input: "a.pdf", to: "pdf", wantErr: true},
		{input: "a.pptx", wantErr: true},
		{input: "README", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input+"->"+tt.to, func(t *testing.T) {
			source, target, err := resolveFormats(tt.input, tt.to)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.want, target)
		})
	}
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("docs", "report_converted.docx"), defaultOutputPath(filepath.Join("docs", "report.pdf"), domain.FormatDOCX))
	assert.Equal(t, "deck_converted.pptx", defaultOutputPath("deck.pdf", domain.FormatPPTX))
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "docconvert v"+version+"\n", out)
}

func TestClassifyJSON(t *testing.T) {
	path := testutil.WriteFile(t, "report.pdf", testutil.PDF(testutil.TextPages(2)))

	out, err := run(t, "classify", "--json", path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "text-based", got["pdf_type"])
	assert.EqualValues(t, 2, got["pages"])
}

func TestClassifyRejectsCorruptInput(t *testing.T) {
	path := testutil.WriteFile(t, "broken.pdf", []byte("not a pdf"))
	_, err := run(t, "classify", path)
	assert.EqualError(t, err, "File content is not a valid PDF document")
}

// Without engines the text layer and generic fallback still convert.
func TestConvertWithoutEngines(t *testing.T) {
	t.Run("pdf to pptx", func(t *testing.T) {
		path := testutil.WriteFile(t, "slides.pdf", testutil.PDF(testutil.TextPages(2)))
		out := filepath.Join(filepath.Dir(path), "deck.pptx")

		stdout, err := run(t, "convert", "--json", "--to", "pptx", "-o", out, path)
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &got))
		assert.Equal(t, "direct-extraction", got["strategy"])
		assert.FileExists(t, out)
	})

	t.Run("docx to pdf", func(t *testing.T) {
		path := testutil.WriteFile(t, "letter.docx", testutil.DOCX([]testutil.Paragraph{
			{Style: "Heading1", Text: "Dear reader"},
			{Text: "This letter was converted without an office suite."},
		}, 1))

		_, err := run(t, "convert", path)
		require.NoError(t, err)

		out := filepath.Join(filepath.Dir(path), "letter_converted.pdf")
		n, err := pdf.PageCount(out)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestConvertRefusesToOverwrite(t *testing.T) {
	path := testutil.WriteFile(t, "a.pdf", testutil.PDF(testutil.TextPages(1)))
	existing := filepath.Join(filepath.Dir(path), "a_converted.docx")
	require.NoError(t, os.WriteFile(existing, []byte("keep me"), 0o600))

	_, err := run(t, "convert", path)
	assert.ErrorContains(t, err, "already exists")

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

func TestConvertAllStrategiesFail(t *testing.T) {
	// A scanned PDF with no OCR engine has nothing left to try.
	path := testutil.WriteFile(t, "scan.pdf", testutil.PDF([][]string{nil}))
	_, err := run(t, "convert", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all conversion strategies failed")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(path), "scan_converted.docx"))
}
