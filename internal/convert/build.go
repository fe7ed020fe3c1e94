package convert

import (
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/docx"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/engine"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/pdf"
	"github.com/spherical/doc-converter/internal/validate"
)

// Engines are the external tools the default strategies delegate to.
type Engines struct {
	Office *engine.LibreOffice
	OCR    *engine.Tesseract
}

// NewEngines resolves engine binaries from configuration.
func NewEngines(cfg config.ConversionConfig) Engines {
	return Engines{
		Office: engine.NewLibreOffice(cfg.SofficePath),
		OCR:    engine.NewTesseract(cfg.TesseractPath, cfg.OCRLanguage, int(cfg.OCRDPI), cfg.OCRPageTimeout),
	}
}

// NewDefaultPipeline wires every strategy against the real engines.
func NewDefaultPipeline(cfg *config.Config, engines Engines, logger *observability.Logger, metrics observability.ConversionMetrics) *Pipeline {
	conv := cfg.Conversion

	classifiers := map[domain.Format]domain.Classifier{
		domain.FormatPDF:  pdf.NewClassifier(pdf.OpenFitz, conv.SampleLimit, conv.DensityThreshold),
		domain.FormatDOCX: docx.NewClassifier(),
	}
	strategies := []Strategy{
		NewEnhancedLayout(engines.Office, conv.LayoutTimeout),
		NewOCRConversion(pdf.OpenFitz, engines.OCR, conv.OCRDPI, conv.OCRWorkers, logger),
		NewDirectExtraction(pdf.ReadTextLayer, pdf.OpenFitz, logger),
		NewNativeOffice(engines.Office, conv.OfficeTimeout),
		NewGenericFallback(docx.Reader{}),
	}

	return NewPipeline(
		validate.NewValidator(cfg.Storage.MaxUploadBytes),
		classifiers,
		strategies,
		cfg.Storage.ScratchDir,
		WithLogger(logger),
		WithMetrics(metrics),
	)
}
