package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/pdf"
	"github.com/spherical/doc-converter/internal/testutil"
	"github.com/spherical/doc-converter/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passValidator struct{ err error }

func (v passValidator) Validate(string, domain.Format) error { return v.err }

type fakeClassifier struct {
	result domain.ClassificationResult
	err    error
	calls  int
}

func (c *fakeClassifier) Classify(context.Context, string) (domain.ClassificationResult, error) {
	c.calls++
	return c.result, c.err
}

// fakeStrategy writes partial output, then fails or succeeds.
type fakeStrategy struct {
	name     string
	fail     error
	panicMsg string
	calls    *[]string
	seen     []domain.ClassificationResult
}

func (s *fakeStrategy) Name() string { return s.name }

func (s *fakeStrategy) Attempt(_ context.Context, job Job) Outcome {
	*s.calls = append(*s.calls, s.name)
	s.seen = append(s.seen, job.Classification)
	if s.panicMsg != "" {
		panic(s.panicMsg)
	}
	if err := os.WriteFile(job.OutputPath, []byte(s.name), 0o600); err != nil {
		return Failure(s.name, err)
	}
	if s.fail != nil {
		return Failure(s.name, s.fail)
	}
	return Success(s.name, job.OutputPath, s.name+" ok")
}

type harness struct {
	pipeline   *Pipeline
	classifier *fakeClassifier
	calls      *[]string
	strategies map[string]*fakeStrategy
	dir        string
}

func newHarness(t *testing.T, verdict domain.Verdict, failing map[string]error) *harness {
	t.Helper()
	calls := &[]string{}
	h := &harness{
		classifier: &fakeClassifier{result: domain.ClassificationResult{Verdict: verdict, PageCount: 2, SampledPages: 2}},
		calls:      calls,
		strategies: map[string]*fakeStrategy{},
		dir:        t.TempDir(),
	}
	var list []Strategy
	for _, name := range []string{NameEnhancedLayout, NameOCR, NameDirect, NameNativeOffice, NameGenericFallback} {
		s := &fakeStrategy{name: name, fail: failing[name], calls: calls}
		h.strategies[name] = s
		list = append(list, s)
	}
	h.pipeline = NewPipeline(passValidator{},
		map[domain.Format]domain.Classifier{domain.FormatPDF: h.classifier, domain.FormatDOCX: h.classifier},
		list, h.dir)
	return h
}

func pdfRequest(target domain.Format) domain.ConversionRequest {
	return domain.ConversionRequest{SourcePath: "/in/doc.pdf", SourceFormat: domain.FormatPDF, Target: target}
}

func outputs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "converted_*"))
	require.NoError(t, err)
	return matches
}

func TestOrder_ScannedPrefersOCR(t *testing.T) {
	for _, target := range []domain.Format{domain.FormatDOCX, domain.FormatPPTX} {
		scanned := Order(domain.FormatPDF, target, domain.VerdictScannedImage)
		text := Order(domain.FormatPDF, target, domain.VerdictTextBased)

		assert.Less(t, indexOf(scanned, NameOCR), indexOf(scanned, NameDirect), "scanned %s", target)
		assert.Less(t, indexOf(text, NameDirect), indexOf(text, NameOCR), "text-based %s", target)
		assert.Equal(t, text, Order(domain.FormatPDF, target, domain.VerdictUnknown))
	}
}

func TestOrder_Table(t *testing.T) {
	assert.Equal(t, NameEnhancedLayout, Order(domain.FormatPDF, domain.FormatDOCX, domain.VerdictScannedImage)[0])
	assert.Equal(t, NameEnhancedLayout, Order(domain.FormatPDF, domain.FormatDOCX, domain.VerdictTextBased)[0])
	assert.Equal(t, []string{NameNativeOffice, NameGenericFallback}, Order(domain.FormatDOCX, domain.FormatPDF, domain.VerdictUnknown))
	assert.Empty(t, Order(domain.FormatPDF, domain.FormatPDF, domain.VerdictTextBased))
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

func TestConvert_FirstSuccessShortCircuits(t *testing.T) {
	h := newHarness(t, domain.VerdictTextBased, nil)

	res, err := h.pipeline.Convert(context.Background(), pdfRequest(domain.FormatDOCX))
	require.NoError(t, err)

	assert.Equal(t, NameEnhancedLayout, res.Strategy)
	assert.Equal(t, []string{NameEnhancedLayout}, *h.calls)
	assert.FileExists(t, res.OutputPath)
	assert.Equal(t, ".docx", filepath.Ext(res.OutputPath))
	assert.Equal(t, 2, res.Classification.PageCount)
}

func TestConvert_FallsThroughInPolicyOrder(t *testing.T) {
	h := newHarness(t, domain.VerdictScannedImage, map[string]error{
		NameEnhancedLayout: domain.EngineUnavailableError("soffice is not installed", nil),
	})

	res, err := h.pipeline.Convert(context.Background(), pdfRequest(domain.FormatDOCX))
	require.NoError(t, err)

	assert.Equal(t, NameOCR, res.Strategy)
	assert.Equal(t, []string{NameEnhancedLayout, NameOCR}, *h.calls)
	assert.Len(t, outputs(t, h.dir), 1, "partial output of failed attempts is removed")
}

func TestConvert_ClassifiesOnce(t *testing.T) {
	h := newHarness(t, domain.VerdictTextBased, map[string]error{
		NameEnhancedLayout: errors.New("layout failed"),
		NameDirect:         errors.New("no text"),
	})

	_, err := h.pipeline.Convert(context.Background(), pdfRequest(domain.FormatDOCX))
	require.NoError(t, err)

	assert.Equal(t, 1, h.classifier.calls)
	assert.Equal(t, []string{NameEnhancedLayout, NameDirect, NameOCR}, *h.calls)
	for _, s := range h.strategies {
		for _, c := range s.seen {
			assert.Equal(t, domain.VerdictTextBased, c.Verdict)
		}
	}
}

func TestConvert_AggregatesAllFailures(t *testing.T) {
	h := newHarness(t, domain.VerdictTextBased, map[string]error{
		NameEnhancedLayout: domain.StrategyError("soffice timed out after 5m0s", domain.ErrEngineTimeout),
		NameDirect:         domain.StrategyError("no extractable text layer", nil),
		NameOCR:            domain.EngineUnavailableError("tesseract is not installed or not on PATH", nil),
	})

	res, err := h.pipeline.Convert(context.Background(), pdfRequest(domain.FormatDOCX))
	require.Error(t, err)
	assert.Nil(t, res)

	assert.Equal(t, domain.ErrorTypePipeline, domain.TypeOf(err))
	assert.True(t, domain.IsClientError(err))

	var failure *PipelineFailure
	require.True(t, errors.As(err, &failure))
	require.Len(t, failure.Failures, 3)
	assert.Equal(t, []string{NameEnhancedLayout, NameDirect, NameOCR},
		[]string{failure.Failures[0].Strategy, failure.Failures[1].Strategy, failure.Failures[2].Strategy})
	assert.Equal(t, "tesseract is not installed or not on PATH", failure.LastReason())

	msg := domain.Reason(err)
	assert.True(t, strings.HasPrefix(msg, "all conversion strategies failed: "))
	assert.Contains(t, msg, "enhanced-layout: soffice timed out after 5m0s")
	assert.Contains(t, msg, "direct-extraction: no extractable text layer")
	assert.ErrorIs(t, err, domain.ErrEngineTimeout)

	assert.Empty(t, outputs(t, h.dir))
}

func TestConvert_ZeroPagesAttemptsNothing(t *testing.T) {
	calls := &[]string{}
	strategy := &fakeStrategy{name: NameDirect, calls: calls}
	classifier := pdf.NewClassifier(func(string) (pdf.Source, error) { return emptySource{}, nil }, 3, 50)

	p := NewPipeline(passValidator{}, map[domain.Format]domain.Classifier{domain.FormatPDF: classifier},
		[]Strategy{strategy}, t.TempDir())

	_, err := p.Convert(context.Background(), pdfRequest(domain.FormatPPTX))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	assert.Empty(t, *calls)
}

func TestConvert_ZeroPagePDFIsUnreadable(t *testing.T) {
	calls := &[]string{}
	strategy := &fakeStrategy{name: NameDirect, calls: calls}
	path := testutil.WriteFile(t, "empty.pdf", testutil.PDF([][]string{}))

	dir := t.TempDir()
	p := NewPipeline(validate.NewValidator(0), map[domain.Format]domain.Classifier{
		domain.FormatPDF: pdf.NewClassifier(nil, 0, 0),
	}, []Strategy{strategy}, dir)

	_, err := p.Convert(context.Background(), domain.ConversionRequest{
		SourcePath:   path,
		SourceFormat: domain.FormatPDF,
		Target:       domain.FormatDOCX,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnreadableDocument)
	assert.True(t, domain.IsClientError(err))
	assert.Empty(t, *calls)
	assert.Empty(t, outputs(t, dir))
}

func TestConvert_ValidationStopsBeforeClassification(t *testing.T) {
	h := newHarness(t, domain.VerdictTextBased, nil)
	h.pipeline.validator = passValidator{err: domain.ValidationError("File size exceeds 50MB limit", domain.ErrInputTooLarge)}

	_, err := h.pipeline.Convert(context.Background(), pdfRequest(domain.FormatDOCX))
	assert.ErrorIs(t, err, domain.ErrInputTooLarge)
	assert.Zero(t, h.classifier.calls)
	assert.Empty(t, *h.calls)
}

func TestConvert_UnsupportedDirection(t *testing.T) {
	h := newHarness(t, domain.VerdictTextBased, nil)

	_, err := h.pipeline.Convert(context.Background(), pdfRequest(domain.FormatPDF))
	assert.ErrorIs(t, err, domain.ErrFormatMismatch)
	assert.Empty(t, *h.calls)
}

func TestConvert_PanickingStrategyIsAFailure(t *testing.T) {
	h := newHarness(t, domain.VerdictUnknown, nil)
	h.strategies[NameNativeOffice].panicMsg = "boom"

	req := domain.ConversionRequest{SourcePath: "/in/doc.docx", SourceFormat: domain.FormatDOCX, Target: domain.FormatPDF}
	res, err := h.pipeline.Convert(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, NameGenericFallback, res.Strategy)
}

func TestConvert_CancelledContext(t *testing.T) {
	h := newHarness(t, domain.VerdictTextBased, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.pipeline.Convert(ctx, pdfRequest(domain.FormatDOCX))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *h.calls)
}

type emptySource struct{}

func (emptySource) NumPage() int                           { return 0 }
func (emptySource) Text(int) (string, error)               { return "", nil }
func (emptySource) RenderPNG(int, float64) ([]byte, error) { return nil, nil }
func (emptySource) Close() error                           { return nil }
