package domain

import "context"

// Classifier produces a cheap structural verdict for an input document.
type Classifier interface {
	// Classify fails with an unreadable error when the document cannot be
	// parsed or has no pages.
	Classify(ctx context.Context, path string) (ClassificationResult, error)
}

// Validator checks an input before any conversion strategy runs.
type Validator interface {
	Validate(path string, format Format) error
}

// Writer renders the intermediate document into a target format.
type Writer interface {
	Format() Format
	Write(ctx context.Context, doc *Document, outputPath string) error
}

// DocumentReader extracts paragraphs and headings from a source document.
type DocumentReader interface {
	Read(ctx context.Context, path string) (*Document, error)
}
