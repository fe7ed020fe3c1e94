package pdf

import (
	"context"
	"unicode"

	"github.com/spherical/doc-converter/internal/domain"
)

const (
	// DefaultSampleLimit is the number of leading pages inspected.
	DefaultSampleLimit = 3
	// DefaultDensityThreshold is the mean non-space characters per sampled
	// page below which a document is treated as image-only.
	DefaultDensityThreshold = 50.0
)

// Classifier decides whether a PDF carries a usable text layer.
type Classifier struct {
	open        Opener
	sampleLimit int
	threshold   float64
}

// NewClassifier creates a classifier. Zero values select the defaults.
func NewClassifier(open Opener, sampleLimit int, threshold float64) *Classifier {
	if open == nil {
		open = OpenFitz
	}
	if sampleLimit <= 0 {
		sampleLimit = DefaultSampleLimit
	}
	if threshold <= 0 {
		threshold = DefaultDensityThreshold
	}
	return &Classifier{open: open, sampleLimit: sampleLimit, threshold: threshold}
}

// Classify samples the first pages and computes the text density.
func (c *Classifier) Classify(ctx context.Context, path string) (domain.ClassificationResult, error) {
	src, err := c.open(path)
	if err != nil {
		return domain.ClassificationResult{}, domain.UnreadableError("cannot open PDF", err)
	}
	defer src.Close()

	pageCount := src.NumPage()
	if pageCount <= 0 {
		return domain.ClassificationResult{}, domain.UnreadableError("PDF has no pages", nil)
	}

	sample := min(pageCount, c.sampleLimit)
	total := 0
	for i := 0; i < sample; i++ {
		if err := ctx.Err(); err != nil {
			return domain.ClassificationResult{}, err
		}
		// A page whose text cannot be extracted counts as empty.
		text, err := src.Text(i)
		if err != nil {
			continue
		}
		total += countVisible(text)
	}

	density := float64(total) / float64(sample)
	verdict := domain.VerdictTextBased
	if density < c.threshold {
		verdict = domain.VerdictScannedImage
	}

	return domain.ClassificationResult{
		Verdict:      verdict,
		PageCount:    pageCount,
		SampledPages: sample,
		CharsPerPage: density,
	}, nil
}

func countVisible(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) && unicode.IsPrint(r) {
			n++
		}
	}
	return n
}
