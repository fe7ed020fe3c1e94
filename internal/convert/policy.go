package convert

import "github.com/spherical/doc-converter/internal/domain"

// OrderFunc returns strategy names in the order they should be attempted.
type OrderFunc func(source, target domain.Format, verdict domain.Verdict) []string

// Order is the default policy. Layout conversion always leads PDF->Word;
// after it, scanned documents go to OCR before direct extraction and
// text-bearing documents the reverse. Unknown is treated as text-bearing.
func Order(source, target domain.Format, verdict domain.Verdict) []string {
	scanned := verdict == domain.VerdictScannedImage

	switch {
	case source == domain.FormatPDF && target == domain.FormatDOCX:
		if scanned {
			return []string{NameEnhancedLayout, NameOCR, NameDirect}
		}
		return []string{NameEnhancedLayout, NameDirect, NameOCR}

	case source == domain.FormatPDF && target == domain.FormatPPTX:
		if scanned {
			return []string{NameOCR, NameDirect}
		}
		return []string{NameDirect, NameOCR}

	case source == domain.FormatDOCX && target == domain.FormatPDF:
		return []string{NameNativeOffice, NameGenericFallback}
	}
	return nil
}
