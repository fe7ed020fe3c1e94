// Package convert implements the conversion strategies, their ordering
// policy and the pipeline that runs them.
package convert

import (
	"context"
	"fmt"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/engine"
)

// Strategy names, as reported in results, logs and metrics.
const (
	NameEnhancedLayout  = "enhanced-layout"
	NameOCR             = "ocr"
	NameDirect          = "direct-extraction"
	NameNativeOffice    = "native-office"
	NameGenericFallback = "generic-fallback"
)

// Job is the input to a single strategy attempt.
type Job struct {
	Request        domain.ConversionRequest
	Classification domain.ClassificationResult
	// WorkDir is private scratch space for this request, removed afterwards.
	WorkDir string
	// OutputPath is where a successful attempt must leave the result.
	OutputPath string
}

// Outcome is the tagged result of one attempt: success when Err is nil.
type Outcome struct {
	Strategy   string
	OutputPath string
	Message    string
	Reason     string
	Err        error
}

// Succeeded reports whether the attempt produced output.
func (o Outcome) Succeeded() bool { return o.Err == nil }

// Success builds a successful outcome.
func Success(strategy, outputPath, message string) Outcome {
	return Outcome{Strategy: strategy, OutputPath: outputPath, Message: message}
}

// Failure builds a failed outcome from err.
func Failure(strategy string, err error) Outcome {
	if err == nil {
		err = fmt.Errorf("%s failed without a reason", strategy)
	}
	return Outcome{Strategy: strategy, Reason: domain.Reason(err), Err: err}
}

// Strategy is one way of producing the target format from the source file.
// Attempt never returns an error: every problem is reported as a Failure.
type Strategy interface {
	Name() string
	Attempt(ctx context.Context, job Job) Outcome
}

// OfficeEngine converts files with an office suite.
type OfficeEngine interface {
	Convert(ctx context.Context, input, outDir string, opts engine.ConvertOptions) (string, error)
}

// OCREngine recognises text in one page image.
type OCREngine interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}
