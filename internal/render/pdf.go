package render

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/spherical/doc-converter/internal/domain"
)

// US Letter, in points.
const (
	pageWidth   = 612.0
	pageHeight  = 792.0
	pageMargin  = 72.0
	bodySize    = 11
	avgCharEm   = 0.52
	lineSpacing = 1.35
	paraSpacing = 6.0
)

var disableConfigDir sync.Once

// PDFWriter lays out headings and paragraphs on Letter pages with the
// standard Helvetica fonts and renders them through pdfcpu.
type PDFWriter struct{}

func (PDFWriter) Format() domain.Format { return domain.FormatPDF }

func (PDFWriter) Write(ctx context.Context, doc *domain.Document, outputPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.TextLength() == 0 {
		return domain.StrategyError("document has no content to render", nil)
	}

	layout := layoutPDF(doc)
	js, err := json.Marshal(layout)
	if err != nil {
		return domain.StrategyError("failed to encode page layout", err)
	}

	disableConfigDir.Do(api.DisableConfigDir)

	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(js), &buf, model.NewDefaultConfiguration()); err != nil {
		return domain.StrategyError("pdf generation failed", err)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return domain.StorageError("failed to create output directory", err)
	}
	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return domain.StorageError("failed to write output file", err)
	}
	return nil
}

// pdfcpu create-JSON shapes.
type (
	pdfDoc struct {
		Paper string             `json:"paper"`
		Pages map[string]pdfPage `json:"pages"`
	}
	pdfPage struct {
		Content pdfContent `json:"content"`
	}
	pdfContent struct {
		Text []pdfText `json:"text"`
	}
	pdfText struct {
		Value string     `json:"value"`
		Pos   [2]float64 `json:"pos"`
		Font  pdfFont    `json:"font"`
	}
	pdfFont struct {
		Name string `json:"name"`
		Size int    `json:"size"`
	}
)

func layoutPDF(doc *domain.Document) pdfDoc {
	l := &pdfLayout{pages: map[string]pdfPage{}}
	for i, page := range doc.Pages {
		if i > 0 && l.used() {
			l.newPage()
		}
		for _, b := range page.Blocks {
			l.block(b)
		}
	}
	if l.n == 0 {
		l.newPage()
	}
	l.flush()
	return pdfDoc{Paper: "Letter", Pages: l.pages}
}

type pdfLayout struct {
	pages map[string]pdfPage
	n     int
	cur   []pdfText
	y     float64
}

func (l *pdfLayout) used() bool { return l.n > 0 && len(l.cur) > 0 }

func (l *pdfLayout) newPage() {
	l.flush()
	l.n++
	l.cur = nil
	l.y = pageHeight - pageMargin
}

func (l *pdfLayout) flush() {
	if l.n > 0 {
		l.pages[strconv.Itoa(l.n)] = pdfPage{Content: pdfContent{Text: l.cur}}
	}
}

func (l *pdfLayout) block(b domain.Block) {
	font := pdfFont{Name: "Helvetica", Size: bodySize}
	if b.Kind == domain.BlockHeading {
		font = pdfFont{Name: "Helvetica-Bold", Size: headingPointSize(b.Level)}
	}
	leading := float64(font.Size) * lineSpacing

	for _, line := range wrap(winAnsi(b.Text), maxChars(font.Size)) {
		if l.n == 0 || l.y-leading < pageMargin {
			l.newPage()
		}
		l.y -= leading
		l.cur = append(l.cur, pdfText{Value: line, Pos: [2]float64{pageMargin, l.y}, Font: font})
	}
	l.y -= paraSpacing
}

func headingPointSize(level int) int {
	switch level {
	case 1:
		return 18
	case 2:
		return 15
	default:
		return 13
	}
}

func maxChars(size int) int {
	return int((pageWidth - 2*pageMargin) / (float64(size) * avgCharEm))
}

// wrap breaks text into lines of at most width runes on word boundaries.
// Words longer than width are split.
func wrap(text string, width int) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		var cur strings.Builder
		curLen := 0
		for _, word := range strings.Fields(para) {
			for utf8.RuneCountInString(word) > width {
				if curLen > 0 {
					lines = append(lines, cur.String())
					cur.Reset()
					curLen = 0
				}
				r := []rune(word)
				lines = append(lines, string(r[:width]))
				word = string(r[width:])
			}
			wl := utf8.RuneCountInString(word)
			if curLen > 0 && curLen+1+wl > width {
				lines = append(lines, cur.String())
				cur.Reset()
				curLen = 0
			}
			if curLen > 0 {
				cur.WriteByte(' ')
				curLen++
			}
			cur.WriteString(word)
			curLen += wl
		}
		if curLen > 0 {
			lines = append(lines, cur.String())
		}
	}
	return lines
}

// winAnsi replaces runes the standard fonts cannot encode.
func winAnsi(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\t':
			return ' '
		case r == '\n' || (r >= 0x20 && r < 0x7f) || (r >= 0xa0 && r <= 0xff):
			return r
		case r == '‘' || r == '’':
			return '\''
		case r == '“' || r == '”':
			return '"'
		case r == '–' || r == '—':
			return '-'
		case r == '•':
			return '*'
		}
		return '?'
	}, s)
}
