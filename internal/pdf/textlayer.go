package pdf

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/spherical/doc-converter/internal/domain"
)

// line is one visual row of text with the largest font size seen on it.
type line struct {
	Text     string
	FontSize float64
	Y        float64
}

// ReadTextLayer extracts headings and paragraphs from the embedded text layer
// using glyph positions and font sizes. It never rasterises.
func ReadTextLayer(ctx context.Context, path string) (doc *domain.Document, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("text layer parse panic: %v", r)
		}
	}()

	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	doc = &domain.Document{}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := domain.Page{Number: i}
		p := r.Page(i)
		if p.V.IsNull() {
			doc.Pages = append(doc.Pages, page)
			continue
		}

		rows, rowErr := p.GetTextByRow()
		if rowErr != nil {
			page.Warning = fmt.Sprintf("text layer unreadable: %v", rowErr)
			doc.Pages = append(doc.Pages, page)
			continue
		}

		page.Blocks = groupBlocks(rowsToLines(rows))
		doc.Pages = append(doc.Pages, page)
	}

	doc.Title = FirstHeading(doc)
	return doc, nil
}

func rowsToLines(rows lpdf.Rows) []line {
	lines := make([]line, 0, len(rows))
	for _, row := range rows {
		content := append(lpdf.TextHorizontal(nil), row.Content...)
		sort.Sort(content)

		var sb strings.Builder
		size := 0.0
		prevEnd := math.Inf(-1)
		for _, t := range content {
			if t.S == "" {
				continue
			}
			if sb.Len() > 0 && t.X-prevEnd > t.FontSize*0.2 {
				sb.WriteByte(' ')
			}
			sb.WriteString(t.S)
			prevEnd = t.X + t.W
			size = math.Max(size, t.FontSize)
		}

		text := strings.Join(strings.Fields(sb.String()), " ")
		if text == "" {
			continue
		}
		lines = append(lines, line{Text: text, FontSize: size, Y: float64(row.Position)})
	}
	return lines
}

// groupBlocks merges consecutive body lines into paragraphs and promotes
// lines set noticeably larger than the body size to headings. Lines are
// expected top to bottom.
func groupBlocks(lines []line) []domain.Block {
	if len(lines) == 0 {
		return nil
	}
	body := bodyFontSize(lines)

	var blocks []domain.Block
	var para []string
	var prevY float64
	flush := func() {
		if len(para) > 0 {
			blocks = append(blocks, domain.Block{Kind: domain.BlockParagraph, Text: strings.Join(para, " ")})
			para = nil
		}
	}

	for i, l := range lines {
		if level := headingLevel(l, body); level > 0 {
			flush()
			blocks = append(blocks, domain.Block{Kind: domain.BlockHeading, Level: level, Text: l.Text})
			prevY = l.Y
			continue
		}
		if i > 0 && len(para) > 0 && math.Abs(prevY-l.Y) > body*1.8 {
			flush()
		}
		para = append(para, l.Text)
		prevY = l.Y
	}
	flush()
	return blocks
}

func headingLevel(l line, body float64) int {
	if body <= 0 || len([]rune(l.Text)) > 120 {
		return 0
	}
	switch {
	case l.FontSize >= body*1.6:
		return 1
	case l.FontSize >= body*1.2:
		return 2
	}
	return 0
}

// bodyFontSize returns the most common rounded font size, weighted by text length.
func bodyFontSize(lines []line) float64 {
	weights := make(map[float64]int)
	for _, l := range lines {
		weights[math.Round(l.FontSize)] += len(l.Text)
	}
	best, bestWeight := 0.0, -1
	for size, w := range weights {
		if w > bestWeight || (w == bestWeight && size < best) {
			best, bestWeight = size, w
		}
	}
	return best
}

// FirstHeading returns the first heading text, or the first paragraph's opening
// words when the document has no headings.
func FirstHeading(doc *domain.Document) string {
	var fallback string
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			if b.Kind == domain.BlockHeading {
				return b.Text
			}
			if fallback == "" && b.Text != "" {
				fallback = truncateRunes(b.Text, 80)
			}
		}
	}
	return fallback
}

// SplitParagraphs splits plain page text on blank lines and collapses the
// whitespace inside each paragraph.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var result []string
	for _, part := range strings.Split(text, "\n\n") {
		p := strings.Join(strings.Fields(part), " ")
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// ParagraphBlocks turns plain page text into paragraph blocks.
func ParagraphBlocks(text string) []domain.Block {
	paras := SplitParagraphs(text)
	blocks := make([]domain.Block, 0, len(paras))
	for _, p := range paras {
		blocks = append(blocks, domain.Block{Kind: domain.BlockParagraph, Text: p})
	}
	return blocks
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
