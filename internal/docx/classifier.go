package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"

	"github.com/spherical/doc-converter/internal/domain"
)

const appPropsPart = "docProps/app.xml"

// Classifier reports page count and text density for Word inputs. Word
// documents always carry text, so the verdict is Unknown.
type Classifier struct{}

// NewClassifier creates a Word classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify reads the page count recorded by the authoring application, falling
// back to one page when the body has any content.
func (c *Classifier) Classify(ctx context.Context, path string) (domain.ClassificationResult, error) {
	doc, err := Read(ctx, path)
	if err != nil {
		return domain.ClassificationResult{}, domain.UnreadableError("cannot parse Word document", err)
	}

	chars := doc.TextLength()
	pages := recordedPages(path)
	if pages == 0 && chars > 0 {
		pages = 1
	}
	if pages == 0 {
		return domain.ClassificationResult{}, domain.UnreadableError("Word document has no content", nil)
	}

	return domain.ClassificationResult{
		Verdict:      domain.VerdictUnknown,
		PageCount:    pages,
		SampledPages: pages,
		CharsPerPage: float64(chars) / float64(pages),
	}, nil
}

// recordedPages returns <Pages> from docProps/app.xml, or 0 when absent.
func recordedPages(path string) int {
	r, err := zip.OpenReader(path)
	if err != nil {
		return 0
	}
	defer r.Close()

	f := findPart(&r.Reader, appPropsPart)
	if f == nil {
		return 0
	}
	rc, err := f.Open()
	if err != nil {
		return 0
	}
	defer rc.Close()

	var props struct {
		Pages int `xml:"Pages"`
	}
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return 0
	}
	return props.Pages
}

// CheckStructure is the format check used by input validation: the file must
// be a ZIP archive containing word/document.xml.
func CheckStructure(path string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return domain.ValidationError("Word document is not a valid archive", fmt.Errorf("%w: %v", domain.ErrUnparseable, err))
	}
	defer r.Close()

	if findPart(&r.Reader, documentPart) == nil {
		return domain.ValidationError("Word document has no main document part", domain.ErrUnparseable)
	}
	return nil
}
