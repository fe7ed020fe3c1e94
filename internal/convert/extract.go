package convert

import (
	"context"
	"fmt"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/pdf"
	"github.com/spherical/doc-converter/internal/render"
)

// TextLayerFunc reads structured blocks from a PDF's embedded text.
type TextLayerFunc func(ctx context.Context, path string) (*domain.Document, error)

// DirectExtraction rebuilds the document from the PDF text layer without
// rasterising. Heading detection comes from glyph sizes; when that reader
// cannot parse the file, plain page text from MuPDF is split into paragraphs.
type DirectExtraction struct {
	textLayer TextLayerFunc
	open      pdf.Opener
	logger    *observability.Logger
}

func NewDirectExtraction(textLayer TextLayerFunc, open pdf.Opener, logger *observability.Logger) *DirectExtraction {
	if textLayer == nil {
		textLayer = pdf.ReadTextLayer
	}
	if open == nil {
		open = pdf.OpenFitz
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &DirectExtraction{textLayer: textLayer, open: open, logger: logger.WithOperation(NameDirect)}
}

func (s *DirectExtraction) Name() string { return NameDirect }

func (s *DirectExtraction) Attempt(ctx context.Context, job Job) Outcome {
	doc, err := s.textLayer(ctx, job.Request.SourcePath)
	if err != nil || doc.TextLength() == 0 {
		if err != nil {
			s.logger.Debug().Err(err).Msg("Text layer reader failed, using plain page text")
		}
		doc, err = s.plainText(ctx, job.Request.SourcePath)
		if err != nil {
			return Failure(s.Name(), err)
		}
	}

	if doc.TextLength() == 0 {
		return Failure(s.Name(), domain.StrategyError("no extractable text layer", nil))
	}
	if doc.Title == "" {
		doc.Title = pdf.FirstHeading(doc)
	}

	if err := writeDocument(ctx, doc, job); err != nil {
		return Failure(s.Name(), err)
	}
	return Success(s.Name(), job.OutputPath,
		fmt.Sprintf("Direct text extraction from %d pages", len(doc.Pages)))
}

func (s *DirectExtraction) plainText(ctx context.Context, path string) (*domain.Document, error) {
	src, err := s.open(path)
	if err != nil {
		return nil, domain.StrategyError("failed to open pdf", err)
	}
	defer src.Close()

	doc := &domain.Document{}
	for i := 0; i < src.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := domain.Page{Number: i + 1}
		text, err := src.Text(i)
		if err != nil {
			page.Warning = fmt.Sprintf("text extraction failed: %v", err)
		} else {
			page.Blocks = pdf.ParagraphBlocks(text)
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}

// writeDocument renders doc in the requested target format at job.OutputPath.
func writeDocument(ctx context.Context, doc *domain.Document, job Job) error {
	w, err := render.ForFormat(job.Request.Target)
	if err != nil {
		return err
	}
	return w.Write(ctx, doc, job.OutputPath)
}
