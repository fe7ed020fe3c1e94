package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/pdf"
)

const (
	// DefaultOCRDPI is the rasterisation resolution for recognition.
	DefaultOCRDPI = 300
	// DefaultOCRWorkers bounds concurrent page recognitions.
	DefaultOCRWorkers = 4

	pageFailedWarning = "OCR failed for this page"
	// minParagraphRunes drops OCR noise such as stray marks and page furniture.
	minParagraphRunes = 4
)

// OCRConversion rasterises every page and recognises it independently.
// A page that fails to render or recognise becomes empty with a warning;
// the document as a whole fails only when no page succeeds.
type OCRConversion struct {
	open    pdf.Opener
	ocr     OCREngine
	dpi     float64
	workers int
	logger  *observability.Logger
}

func NewOCRConversion(open pdf.Opener, ocr OCREngine, dpi float64, workers int, logger *observability.Logger) *OCRConversion {
	if open == nil {
		open = pdf.OpenFitz
	}
	if dpi < DefaultOCRDPI {
		dpi = DefaultOCRDPI
	}
	if workers <= 0 {
		workers = DefaultOCRWorkers
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &OCRConversion{open: open, ocr: ocr, dpi: dpi, workers: workers, logger: logger.WithOperation(NameOCR)}
}

func (s *OCRConversion) Name() string { return NameOCR }

func (s *OCRConversion) Attempt(ctx context.Context, job Job) Outcome {
	src, err := s.open(job.Request.SourcePath)
	if err != nil {
		return Failure(s.Name(), domain.StrategyError("failed to open pdf", err))
	}
	defer src.Close()

	n := src.NumPage()
	if n == 0 {
		return Failure(s.Name(), domain.StrategyError("document has no pages", nil))
	}

	imgDir := filepath.Join(job.WorkDir, "ocr")
	if err := os.MkdirAll(imgDir, 0o755); err != nil {
		return Failure(s.Name(), domain.StorageError("failed to create image directory", err))
	}

	texts := make([]string, n)
	failed := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			text, err := s.recognizePage(gctx, src, i, imgDir)
			if err == nil {
				texts[i] = text
				return nil
			}
			// Engine missing or request cancelled: no later page can succeed.
			if errors.Is(err, domain.ErrEngineUnavailable) || gctx.Err() != nil {
				return err
			}
			s.logger.Warn().Int("page", i+1).Err(err).Msg("Page recognition failed")
			failed[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Failure(s.Name(), err)
	}

	doc := &domain.Document{}
	warnings := 0
	for i := 0; i < n; i++ {
		page := domain.Page{Number: i + 1}
		if job.Request.Target != domain.FormatPPTX {
			page.Blocks = append(page.Blocks, domain.Block{Kind: domain.BlockHeading, Level: 2, Text: fmt.Sprintf("Page %d", i+1)})
		}
		if failed[i] {
			page.Warning = pageFailedWarning
			warnings++
		} else {
			page.Blocks = append(page.Blocks, ocrParagraphs(texts[i])...)
		}
		doc.Pages = append(doc.Pages, page)
	}
	if warnings == n {
		return Failure(s.Name(), domain.StrategyError(fmt.Sprintf("OCR failed on all %d pages", n), nil))
	}
	doc.Title = pdf.FirstHeading(&domain.Document{Pages: stripPageHeadings(doc.Pages)})

	if err := writeDocument(ctx, doc, job); err != nil {
		return Failure(s.Name(), err)
	}

	msg := fmt.Sprintf("OCR conversion completed for %d pages", n)
	if warnings > 0 {
		msg += fmt.Sprintf(" (%d with warnings)", warnings)
	}
	return Success(s.Name(), job.OutputPath, msg)
}

func (s *OCRConversion) recognizePage(ctx context.Context, src pdf.Source, page int, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	img, err := pdf.RenderPage(src, page, s.dpi, dir)
	if err != nil {
		return "", err
	}
	defer os.Remove(img.ImagePath)

	return s.ocr.Recognize(ctx, img.ImagePath)
}

func ocrParagraphs(text string) []domain.Block {
	var blocks []domain.Block
	for _, p := range pdf.SplitParagraphs(text) {
		if len([]rune(p)) < minParagraphRunes {
			continue
		}
		blocks = append(blocks, domain.Block{Kind: domain.BlockParagraph, Text: p})
	}
	return blocks
}

func stripPageHeadings(pages []domain.Page) []domain.Page {
	out := make([]domain.Page, len(pages))
	for i, p := range pages {
		out[i] = domain.Page{Number: p.Number}
		for _, b := range p.Blocks {
			if b.Kind == domain.BlockHeading && strings.HasPrefix(b.Text, "Page ") {
				continue
			}
			out[i].Blocks = append(out[i].Blocks, b)
		}
	}
	return out
}
