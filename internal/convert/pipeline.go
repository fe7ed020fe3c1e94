package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

// PipelineFailure is returned when every strategy failed. Failures keeps
// each attempt's reason in the order the strategies ran.
type PipelineFailure struct {
	Failures []Outcome
}

func (f *PipelineFailure) Error() string {
	if len(f.Failures) == 0 {
		return "no conversion strategy available"
	}
	reasons := make([]string, len(f.Failures))
	for i, o := range f.Failures {
		reasons[i] = o.Strategy + ": " + o.Reason
	}
	return "all conversion strategies failed: " + strings.Join(reasons, "; ")
}

// Unwrap exposes every attempt's error to errors.Is and errors.As.
func (f *PipelineFailure) Unwrap() []error {
	errs := make([]error, 0, len(f.Failures))
	for _, o := range f.Failures {
		errs = append(errs, o.Err)
	}
	return errs
}

// LastReason is the reason reported by the final attempt.
func (f *PipelineFailure) LastReason() string {
	if len(f.Failures) == 0 {
		return ""
	}
	return f.Failures[len(f.Failures)-1].Reason
}

// Pipeline validates a request, classifies the input once and runs the
// strategies in policy order until one succeeds.
type Pipeline struct {
	validator   domain.Validator
	classifiers map[domain.Format]domain.Classifier
	strategies  map[string]Strategy
	order       OrderFunc
	outputDir   string
	metrics     observability.ConversionMetrics
	logger      *observability.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithOrder replaces the default ordering policy.
func WithOrder(order OrderFunc) Option {
	return func(p *Pipeline) { p.order = order }
}

// WithMetrics records attempts and conversions.
func WithMetrics(m observability.ConversionMetrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *observability.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// NewPipeline creates a pipeline writing outputs into outputDir.
func NewPipeline(validator domain.Validator, classifiers map[domain.Format]domain.Classifier, strategies []Strategy, outputDir string, opts ...Option) *Pipeline {
	p := &Pipeline{
		validator:   validator,
		classifiers: classifiers,
		strategies:  make(map[string]Strategy, len(strategies)),
		order:       Order,
		outputDir:   outputDir,
		metrics:     observability.Noop{},
		logger:      observability.NopLogger(),
	}
	for _, s := range strategies {
		p.strategies[s.Name()] = s
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithOperation("pipeline")
	return p
}

// Classify validates path as format and returns its classification.
func (p *Pipeline) Classify(ctx context.Context, path string, format domain.Format) (domain.ClassificationResult, error) {
	if err := p.validator.Validate(path, format); err != nil {
		return domain.ClassificationResult{}, err
	}
	c, ok := p.classifiers[format]
	if !ok {
		return domain.ClassificationResult{}, domain.ValidationError(fmt.Sprintf("unsupported source format %q", format), domain.ErrFormatMismatch)
	}
	return c.Classify(ctx, path)
}

// Convert runs the request to completion. On success the output file belongs
// to the caller. On failure no output is left behind.
func (p *Pipeline) Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error) {
	start := time.Now()
	log := p.logger.WithContext(ctx)

	if !domain.SupportsConversion(req.SourceFormat, req.Target) {
		return nil, domain.ValidationError(
			fmt.Sprintf("Conversion from %s to %s is not supported", req.SourceFormat, req.Target), domain.ErrFormatMismatch)
	}

	classification, err := p.Classify(ctx, req.SourcePath, req.SourceFormat)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("source", filepath.Base(req.SourcePath)).
		Str("target", string(req.Target)).
		Str("verdict", string(classification.Verdict)).
		Int("pages", classification.PageCount).
		Float64("chars_per_page", classification.CharsPerPage).
		Msg("Document classified")

	if err := os.MkdirAll(p.outputDir, 0o755); err != nil {
		return nil, domain.StorageError("failed to create output directory", err)
	}
	workDir, err := os.MkdirTemp(p.outputDir, "job-*")
	if err != nil {
		return nil, domain.StorageError("failed to create work directory", err)
	}
	defer os.RemoveAll(workDir)

	job := Job{
		Request:        req,
		Classification: classification,
		WorkDir:        workDir,
		OutputPath:     filepath.Join(p.outputDir, "converted_"+uuid.NewString()+req.Target.Extension()),
	}

	var failures []Outcome
	for _, name := range p.order(req.SourceFormat, req.Target, classification.Verdict) {
		if err := ctx.Err(); err != nil {
			p.removePartial(job.OutputPath)
			return nil, err
		}

		outcome := p.attempt(ctx, name, job)
		if outcome.Succeeded() {
			p.metrics.IncStrategyAttempt(name, "success")
			p.metrics.ObserveConversion(string(req.Target), name, "success", time.Since(start).Seconds())

			log.Info().Str("strategy", name).Dur("duration", time.Since(start)).Msg(outcome.Message)
			return &domain.ConversionResult{
				OutputPath:     job.OutputPath,
				Strategy:       name,
				Message:        outcome.Message,
				Classification: classification,
				Duration:       time.Since(start),
			}, nil
		}

		p.metrics.IncStrategyAttempt(name, "failure")
		log.Warn().Str("strategy", name).Str("reason", outcome.Reason).Msg("Strategy failed, trying next")
		p.removePartial(job.OutputPath)
		failures = append(failures, outcome)
	}

	p.metrics.ObserveConversion(string(req.Target), "none", "failure", time.Since(start).Seconds())
	failure := &PipelineFailure{Failures: failures}
	log.Error().Str("reasons", failure.Error()).Msg("Conversion failed")
	return nil, domain.NewError(domain.ErrorTypePipeline, failure.Error(), failure)
}

// attempt runs one strategy, converting a panic into a failure.
func (p *Pipeline) attempt(ctx context.Context, name string, job Job) (out Outcome) {
	s, ok := p.strategies[name]
	if !ok {
		return Failure(name, domain.EngineUnavailableError("strategy not configured", nil))
	}
	defer func() {
		if r := recover(); r != nil {
			out = Failure(name, domain.StrategyError(fmt.Sprintf("strategy panicked: %v", r), nil))
		}
	}()
	return s.Attempt(ctx, job)
}

func (p *Pipeline) removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn().Str("path", path).Err(err).Msg("Failed to remove partial output")
	}
}
