// Package pdf reads PDF inputs: page access and rasterisation via go-fitz,
// structural checks via pdfcpu, and positioned text via ledongthuc/pdf.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"
	"github.com/spherical/doc-converter/internal/domain"
)

// Source is an open PDF document.
type Source interface {
	NumPage() int
	// Text returns the extractable text of a zero-based page.
	Text(page int) (string, error)
	// RenderPNG rasterises a zero-based page at dpi.
	RenderPNG(page int, dpi float64) ([]byte, error)
	Close() error
}

// Opener opens a PDF file as a Source.
type Opener func(path string) (Source, error)

// fitzSource implements Source on top of MuPDF. go-fitz serialises calls on
// a document internally, so a Source may be shared between goroutines.
type fitzSource struct {
	doc *fitz.Document
}

// OpenFitz opens path with go-fitz.
func OpenFitz(path string) (Source, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", filepath.Base(path), err)
	}
	return &fitzSource{doc: doc}, nil
}

func (s *fitzSource) NumPage() int {
	return s.doc.NumPage()
}

func (s *fitzSource) Text(page int) (string, error) {
	return s.doc.Text(page)
}

func (s *fitzSource) RenderPNG(page int, dpi float64) ([]byte, error) {
	return s.doc.ImagePNG(page, dpi)
}

func (s *fitzSource) Close() error {
	return s.doc.Close()
}

// PageImage is a rasterised page written to disk.
type PageImage struct {
	PageNumber int
	ImagePath  string
}

// RenderPage rasterises one zero-based page into dir as page_NNN.png.
func RenderPage(src Source, page int, dpi float64, dir string) (PageImage, error) {
	data, err := src.RenderPNG(page, dpi)
	if err != nil {
		return PageImage{}, fmt.Errorf("render page %d: %w", page+1, err)
	}

	outputPath := filepath.Join(dir, fmt.Sprintf("page_%03d.png", page+1))
	if err := os.WriteFile(outputPath, data, 0o600); err != nil {
		return PageImage{}, domain.StorageError(fmt.Sprintf("failed to write image for page %d", page+1), err)
	}

	return PageImage{PageNumber: page + 1, ImagePath: outputPath}, nil
}
