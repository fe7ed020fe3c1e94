package convert

import (
	"context"
	"fmt"

	"github.com/spherical/doc-converter/internal/docx"
	"github.com/spherical/doc-converter/internal/domain"
)

// GenericFallback reads paragraphs and headings from the Word document and
// lays them out again with the built-in PDF writer. It needs no external engine.
type GenericFallback struct {
	reader domain.DocumentReader
}

func NewGenericFallback(reader domain.DocumentReader) *GenericFallback {
	if reader == nil {
		reader = docx.Reader{}
	}
	return &GenericFallback{reader: reader}
}

func (s *GenericFallback) Name() string { return NameGenericFallback }

func (s *GenericFallback) Attempt(ctx context.Context, job Job) Outcome {
	doc, err := s.reader.Read(ctx, job.Request.SourcePath)
	if err != nil {
		return Failure(s.Name(), domain.StrategyError("failed to read document", err))
	}
	if err := writeDocument(ctx, doc, job); err != nil {
		return Failure(s.Name(), err)
	}

	blocks := 0
	for _, p := range doc.Pages {
		blocks += len(p.Blocks)
	}
	return Success(s.Name(), job.OutputPath, fmt.Sprintf("Fallback conversion of %d paragraphs", blocks))
}
