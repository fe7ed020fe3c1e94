package pdf

import (
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spherical/doc-converter/internal/domain"
)

var disableConfigDir sync.Once

// PageCount parses the PDF structure with pdfcpu and returns its page count.
func PageCount(path string) (int, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, domain.ValidationError("PDF structure is invalid", fmt.Errorf("%w: %v", domain.ErrUnparseable, err))
	}
	return n, nil
}

// CheckStructure is the format check used by input validation: the file must
// parse and contain at least one page. A zero-page file is also unreadable.
func CheckStructure(path string) error {
	n, err := PageCount(path)
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ValidationError("PDF has no pages",
			fmt.Errorf("%w: %w", domain.ErrUnparseable, domain.ErrUnreadableDocument))
	}
	return nil
}
