// Package docx reads Word (OOXML) documents: paragraphs, headings and page count.
package docx

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spherical/doc-converter/internal/domain"
)

const documentPart = "word/document.xml"

// Read parses word/document.xml into a single-page intermediate document.
// Word has no fixed pagination, so all blocks land on page 1.
func Read(ctx context.Context, path string) (*domain.Document, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	f := findPart(&r.Reader, documentPart)
	if f == nil {
		return nil, fmt.Errorf("%s not found in archive", documentPart)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", documentPart, err)
	}
	defer rc.Close()

	blocks, err := parseBody(ctx, rc)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{Pages: []domain.Page{{Number: 1, Blocks: blocks}}}
	for _, b := range blocks {
		if b.Kind == domain.BlockHeading {
			doc.Title = b.Text
			break
		}
	}
	return doc, nil
}

// Reader adapts Read to domain.DocumentReader.
type Reader struct{}

func (Reader) Read(ctx context.Context, path string) (*domain.Document, error) {
	return Read(ctx, path)
}

// paragraph is the text and style collected for one open w:p.
type paragraph struct {
	text  strings.Builder
	style string
}

// parseBody walks document.xml. A w:p nested inside another (text box
// content) flushes the outer paragraph's text so far, so reading order holds.
func parseBody(ctx context.Context, r io.Reader) ([]domain.Block, error) {
	decoder := xml.NewDecoder(r)

	var (
		blocks []domain.Block
		open   []*paragraph
		inText bool
	)

	emit := func(p *paragraph) {
		content := strings.TrimSpace(p.text.String())
		p.text.Reset()
		if content == "" {
			return
		}
		if level := HeadingLevel(p.style); level > 0 {
			blocks = append(blocks, domain.Block{Kind: domain.BlockHeading, Level: level, Text: content})
		} else {
			blocks = append(blocks, domain.Block{Kind: domain.BlockParagraph, Text: content})
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", documentPart, err)
		}

		var cur *paragraph
		if len(open) > 0 {
			cur = open[len(open)-1]
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				if cur != nil {
					emit(cur)
				}
				open = append(open, &paragraph{})
			case "pStyle":
				if cur != nil {
					cur.style = attr(t, "val")
				}
			case "t":
				inText = cur != nil
			case "tab":
				if cur != nil {
					cur.text.WriteByte('\t')
				}
			case "br", "cr":
				if cur != nil {
					cur.text.WriteByte(' ')
				}
			}

		case xml.CharData:
			if inText && cur != nil {
				cur.text.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if cur != nil {
					emit(cur)
					open = open[:len(open)-1]
				}
			}
		}
	}

	return blocks, nil
}

// HeadingLevel maps a paragraph style id to a heading level, or 0 for body text.
// e.g. "Heading1" -> 1, "Title" -> 1, "Subtitle" -> 2.
func HeadingLevel(style string) int {
	lower := strings.ToLower(style)

	switch lower {
	case "title":
		return 1
	case "subtitle":
		return 2
	}

	for _, prefix := range []string{"heading", "titre", "überschrift"} {
		if rest, ok := strings.CutPrefix(lower, prefix); ok {
			rest = strings.TrimSpace(rest)
			if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 6 {
				return n
			}
		}
	}
	return 0
}

func attr(el xml.StartElement, local string) string {
	for _, a := range el.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

func findPart(r *zip.Reader, name string) *zip.File {
	for _, f := range r.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
