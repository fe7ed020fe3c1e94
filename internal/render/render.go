// Package render writes the intermediate document model to output formats.
package render

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spherical/doc-converter/internal/domain"
)

// ForFormat returns the writer that produces the given format.
func ForFormat(f domain.Format) (domain.Writer, error) {
	switch f {
	case domain.FormatDOCX:
		return DOCXWriter{}, nil
	case domain.FormatPPTX:
		return PPTXWriter{}, nil
	case domain.FormatPDF:
		return PDFWriter{}, nil
	}
	return nil, domain.ValidationError(fmt.Sprintf("no writer for format %q", f), domain.ErrFormatMismatch)
}

// part is one file inside an OOXML package.
type part struct {
	name string
	body []byte
}

// writePackage zips parts into path. [Content_Types].xml must be the first part.
func writePackage(path string, parts []part) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return domain.StorageError("failed to create output directory", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return domain.StorageError("failed to create output file", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = domain.StorageError("failed to close output file", cerr)
		}
	}()

	zw := zip.NewWriter(f)
	for _, p := range parts {
		w, err := zw.Create(p.name)
		if err != nil {
			return domain.StorageError("failed to write package part "+p.name, err)
		}
		if _, err := w.Write(p.body); err != nil {
			return domain.StorageError("failed to write package part "+p.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return domain.StorageError("failed to finalize package", err)
	}
	return nil
}

func esc(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(stripControl(s)))
	return b.String()
}

// stripControl drops characters that are illegal in XML 1.0.
func stripControl(s string) string {
	clean := true
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r < 0x20 && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

func corePart(title string) part {
	return part{"docProps/core.xml", []byte(xmlHeader +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + esc(title) + `</dc:title><dc:creator>doc-converter</dc:creator>` +
		`</cp:coreProperties>`)}
}
