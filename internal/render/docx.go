package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomutex/godocx"
	wordml "github.com/gomutex/godocx/docx"

	"github.com/spherical/doc-converter/internal/domain"
)

// DOCXWriter renders a Document as a WordprocessingML package. Pages are
// separated by page breaks and headings use the template's Heading styles.
type DOCXWriter struct{}

func (DOCXWriter) Format() domain.Format { return domain.FormatDOCX }

func (DOCXWriter) Write(ctx context.Context, doc *domain.Document, outputPath string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	out, err := godocx.NewDocument()
	if err != nil {
		return domain.StrategyError("failed to load document template", err)
	}
	defer out.Close()

	for i, page := range doc.Pages {
		if i > 0 {
			out.AddPageBreak()
		}
		for _, b := range page.Blocks {
			if err := addDOCXBlock(out, b); err != nil {
				return err
			}
		}
	}
	out.FileMap.Store("docProps/core.xml", corePart(doc.Title).body)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return domain.StorageError("failed to create output directory", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return domain.StorageError("failed to create output file", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = domain.StorageError("failed to close output file", cerr)
		}
	}()

	if err := out.Write(f); err != nil {
		return domain.StorageError("failed to write docx package", err)
	}
	return nil
}

func addDOCXBlock(out *wordml.RootDoc, block domain.Block) error {
	text := stripControl(block.Text)

	if block.Kind == domain.BlockHeading && block.Level >= 1 && block.Level <= 6 {
		heading := strings.Join(strings.Fields(text), " ")
		if _, err := out.AddHeading(heading, uint(block.Level)); err != nil {
			return domain.StrategyError(fmt.Sprintf("failed to add heading level %d", block.Level), err)
		}
		return nil
	}

	p := out.AddEmptyParagraph()
	var run *wordml.Run
	for _, line := range strings.Split(text, "\n") {
		if run != nil {
			run.AddBreak(nil)
		}
		run = p.AddText(line)
	}
	return nil
}
