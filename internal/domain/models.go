package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Format identifies a document format handled by the converter.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatPPTX Format = "pptx"
)

// Extension returns the file extension for the format, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// ParseFormat maps a user-supplied name or extension to a Format.
func ParseFormat(s string) (Format, bool) {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	switch s {
	case "pdf":
		return FormatPDF, true
	case "docx", "word":
		return FormatDOCX, true
	case "pptx", "powerpoint":
		return FormatPPTX, true
	}
	return "", false
}

// FormatFromPath derives the format from a file name's extension.
func FormatFromPath(path string) (Format, bool) {
	ext := filepath.Ext(path)
	if ext == "" {
		return "", false
	}
	return ParseFormat(ext)
}

// DefaultTarget returns the conversion target used when a caller does not name one.
func DefaultTarget(source Format) (Format, bool) {
	switch source {
	case FormatPDF:
		return FormatDOCX, true
	case FormatDOCX:
		return FormatPDF, true
	}
	return "", false
}

// SupportsConversion reports whether source -> target is a supported direction.
func SupportsConversion(source, target Format) bool {
	switch source {
	case FormatPDF:
		return target == FormatDOCX || target == FormatPPTX
	case FormatDOCX:
		return target == FormatPDF
	}
	return false
}

// ConversionRequest describes a single conversion. It is not modified once created.
type ConversionRequest struct {
	SourcePath   string
	SourceFormat Format
	Target       Format
	// OriginalName is the client-side file name, used to derive the download name.
	OriginalName string
	// Requester identifies the client (e.g. remote address). Audit only.
	Requester string
}

// Verdict is the classifier's structural judgement of a document.
type Verdict string

const (
	VerdictTextBased    Verdict = "text_based"
	VerdictScannedImage Verdict = "scanned_image"
	VerdictUnknown      Verdict = "unknown"
)

// ClassificationResult is computed once per request and read-only afterwards.
type ClassificationResult struct {
	Verdict      Verdict `json:"verdict"`
	PageCount    int     `json:"page_count"`
	SampledPages int     `json:"sampled_pages"`
	// CharsPerPage is the mean extractable characters over the sampled pages.
	CharsPerPage float64 `json:"chars_per_page"`
}

// DocumentType renders the verdict the way API responses report it.
func (c ClassificationResult) DocumentType() string {
	if c.Verdict == VerdictScannedImage {
		return "scanned"
	}
	return "text-based"
}

// BlockKind distinguishes structural blocks in the intermediate document.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
)

// Block is one heading or paragraph.
type Block struct {
	Kind  BlockKind `json:"kind"`
	Level int       `json:"level,omitempty"` // heading level 1-6, 0 for body
	Text  string    `json:"text"`
}

// Page groups the blocks recovered from one source page.
type Page struct {
	Number  int     `json:"number"`
	Blocks  []Block `json:"blocks"`
	Warning string  `json:"warning,omitempty"`
}

// Document is the format-neutral content produced by extraction strategies
// and consumed by the output writers.
type Document struct {
	Title string `json:"title"`
	Pages []Page `json:"pages"`
}

// TextLength returns the number of characters across all blocks.
func (d *Document) TextLength() int {
	n := 0
	for _, p := range d.Pages {
		for _, b := range p.Blocks {
			n += len([]rune(b.Text))
		}
	}
	return n
}

// Warnings returns the number of pages carrying a warning.
func (d *Document) Warnings() int {
	n := 0
	for _, p := range d.Pages {
		if p.Warning != "" {
			n++
		}
	}
	return n
}

// ConversionResult is what a successful pipeline run hands back to the caller.
type ConversionResult struct {
	OutputPath     string
	Strategy       string
	Message        string
	Classification ClassificationResult
	Duration       time.Duration
}
