package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/doc-converter/cmd/docconvert-api/handlers"
	"github.com/spherical/doc-converter/internal/artifact"
	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/docx"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/pdf"
	"github.com/spherical/doc-converter/internal/testutil"
	"github.com/spherical/doc-converter/internal/validate"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// recorder tracks which strategies ran, in order.
type recorder struct {
	mu    sync.Mutex
	names []string
}

func (r *recorder) add(name string) {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

type stubStrategy struct {
	name string
	fail error
	rec  *recorder
}

func (s stubStrategy) Name() string { return s.name }

func (s stubStrategy) Attempt(_ context.Context, job convert.Job) convert.Outcome {
	s.rec.add(s.name)
	if s.fail != nil {
		return convert.Failure(s.name, s.fail)
	}
	if err := os.WriteFile(job.OutputPath, []byte("converted by "+s.name), 0o600); err != nil {
		return convert.Failure(s.name, err)
	}
	return convert.Success(s.name, job.OutputPath, s.name+" done")
}

type stubEngine struct {
	name      string
	available bool
	version   string
}

func (e stubEngine) Name() string    { return e.name }
func (e stubEngine) Available() bool { return e.available }
func (e stubEngine) Version(context.Context) (string, error) {
	return e.version, nil
}

type server struct {
	handler http.Handler
	store   *artifact.Store
	clock   *clock
	rec     *recorder
	scratch string
}

// newServer wires the real router, validator, classifiers and store around
// stub strategies. failing names strategies that fail with an engine error.
func newServer(t *testing.T, failing ...string) *server {
	t.Helper()

	scratch := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Storage.ScratchDir = scratch

	clk := &clock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	fails := map[string]bool{}
	for _, n := range failing {
		fails[n] = true
	}

	var strategies []convert.Strategy
	for _, name := range []string{convert.NameEnhancedLayout, convert.NameOCR, convert.NameDirect, convert.NameNativeOffice, convert.NameGenericFallback} {
		s := stubStrategy{name: name, rec: rec}
		if fails[name] {
			s.fail = domain.EngineUnavailableError(name+" engine is not installed", nil)
		}
		strategies = append(strategies, s)
	}

	prom := observability.NewProm("docconvert_test")
	pipeline := convert.NewPipeline(
		validate.NewValidator(cfg.Storage.MaxUploadBytes),
		map[domain.Format]domain.Classifier{
			domain.FormatPDF:  pdf.NewClassifier(pdf.OpenFitz, cfg.Conversion.SampleLimit, cfg.Conversion.DensityThreshold),
			domain.FormatDOCX: docx.NewClassifier(),
		},
		strategies,
		scratch,
		convert.WithMetrics(prom),
	)
	store := artifact.NewStore(artifact.WithClock(clk.Now), artifact.WithObserver(artifact.NewMetricsObserver(prom)))

	handler := NewRouter(observability.NopLogger(), Dependencies{
		Converter: pipeline,
		Store:     store,
		Engines: []handlers.Engine{
			stubEngine{name: "libreoffice", available: false},
			stubEngine{name: "tesseract", available: true, version: "5.3.0"},
		},
		Metrics: prom.Handler(),
	}, cfg)

	return &server{handler: handler, store: store, clock: clk, rec: rec, scratch: scratch}
}

func (s *server) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func uploadRequest(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "-" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func scratchFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestUpload_TextPDFDownloadThenExpire(t *testing.T) {
	srv := newServer(t, convert.NameEnhancedLayout)

	w := srv.do(uploadRequest(t, "quarterly report.pdf", testutil.PDF(testutil.TextPages(3)), nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "text-based", resp["pdf_type"])
	assert.EqualValues(t, 3, resp["pages"])
	assert.EqualValues(t, 4, resp["expires_in_minutes"])
	assert.Equal(t, convert.NameDirect, resp["strategy"])
	assert.EqualValues(t, srv.clock.Now().Add(4*time.Minute).Unix(), resp["expiry_time"])

	id, _ := resp["download_id"].(string)
	require.True(t, artifact.ValidHandle(id))
	assert.Equal(t, 1, srv.store.Len())
	assert.Equal(t, []string{convert.NameEnhancedLayout, convert.NameDirect}, srv.rec.calls())

	dl := srv.do(httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, "converted by "+convert.NameDirect, dl.Body.String())
	assert.Equal(t, handlers.MIMEType(domain.FormatDOCX), dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "quarterly report_converted.docx")

	st := srv.do(httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	status := decode(t, st)
	assert.Equal(t, true, status["success"])
	assert.Equal(t, false, status["expired"])
	assert.EqualValues(t, 240, status["time_remaining_seconds"])
	assert.EqualValues(t, 4.0, status["time_remaining_minutes"])

	srv.clock.Advance(4 * time.Minute)

	st = srv.do(httptest.NewRequest(http.MethodGet, "/status/"+id, nil))
	require.Equal(t, http.StatusOK, st.Code)
	assert.Equal(t, map[string]any{"success": false, "expired": true}, decode(t, st))

	dl = srv.do(httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	assert.Equal(t, http.StatusNotFound, dl.Code)
	assert.Equal(t, "File not found or expired", decode(t, dl)["error"])
	assert.Zero(t, srv.store.Len())
	assert.Empty(t, scratchFiles(t, srv.scratch), "input and output are deleted on expiry")
}

func TestUpload_OversizeRejected(t *testing.T) {
	srv := newServer(t)

	big := make([]byte, 60*1024*1024)
	copy(big, "%PDF-1.4\n")
	w := srv.do(uploadRequest(t, "huge.pdf", big, nil))

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "File size exceeds 50MB limit", resp["error"])
	assert.Zero(t, srv.store.Len())
	assert.Empty(t, srv.rec.calls())
	assert.Empty(t, scratchFiles(t, srv.scratch))
}

func TestUpload_ScannedPDFUsesOCRFirst(t *testing.T) {
	srv := newServer(t, convert.NameEnhancedLayout)

	w := srv.do(uploadRequest(t, "scan.pdf", testutil.PDF([][]string{nil, nil}), map[string]string{"target": "pptx"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, "scanned", resp["pdf_type"])
	assert.EqualValues(t, 2, resp["pages"])
	assert.Equal(t, convert.NameOCR, resp["strategy"])
	assert.Equal(t, []string{convert.NameOCR}, srv.rec.calls(), "direct extraction is never reached")

	id := resp["download_id"].(string)
	dl := srv.do(httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Equal(t, handlers.MIMEType(domain.FormatPPTX), dl.Header().Get("Content-Type"))
	assert.Contains(t, dl.Header().Get("Content-Disposition"), "scan_converted.pptx")
}

func TestUpload_AllStrategiesFail(t *testing.T) {
	srv := newServer(t, convert.NameEnhancedLayout, convert.NameOCR, convert.NameDirect)

	w := srv.do(uploadRequest(t, "report.pdf", testutil.PDF(testutil.TextPages(2)), nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decode(t, w)
	assert.Equal(t, false, resp["success"])
	msg, _ := resp["error"].(string)
	assert.Contains(t, msg, "all conversion strategies failed")
	for _, name := range []string{convert.NameEnhancedLayout, convert.NameOCR, convert.NameDirect} {
		assert.Contains(t, msg, name)
	}

	assert.Zero(t, srv.store.Len())
	assert.Empty(t, scratchFiles(t, srv.scratch), "upload and partial output are cleaned up")
}

func TestUpload_WordToPDF(t *testing.T) {
	srv := newServer(t, convert.NameNativeOffice)

	doc := testutil.DOCX([]testutil.Paragraph{{Style: "Heading1", Text: "Minutes"}, {Text: "Attendees were present."}}, 2)
	w := srv.do(uploadRequest(t, "minutes.docx", doc, nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode(t, w)
	assert.Equal(t, convert.NameGenericFallback, resp["strategy"])
	assert.EqualValues(t, 2, resp["pages"])
	assert.Equal(t, []string{convert.NameNativeOffice, convert.NameGenericFallback}, srv.rec.calls())
}

func TestUpload_ValidationReasons(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		fields   map[string]string
		want     string
	}{
		{name: "no file field", filename: "-", want: "No file provided"},
		{name: "empty filename", filename: "", data: []byte("x"), want: "No file selected"},
		{name: "unsupported extension", filename: "notes.txt", data: []byte("hello"), want: "Only PDF and Word (.docx) files are allowed"},
		{name: "unsupported direction", filename: "a.pdf", data: testutil.PDF(testutil.TextPages(1)), fields: map[string]string{"target": "pdf"}, want: "Conversion from pdf to pdf is not supported"},
		{name: "content mismatch", filename: "fake.pdf", data: []byte("GIF89a not a pdf"), want: "File content is not a valid PDF document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t)
			w := srv.do(uploadRequest(t, tt.filename, tt.data, tt.fields))

			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, decode(t, w)["error"])
			assert.Empty(t, srv.rec.calls())
			assert.Zero(t, srv.store.Len())
		})
	}
}

func TestUpload_NotMultipart(t *testing.T) {
	srv := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	w := srv.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", decode(t, w)["error"])
}

func TestDownload_UnknownAndMalformedHandles(t *testing.T) {
	srv := newServer(t)
	for _, id := range []string{strings.Repeat("a", 64), "short", "..%2F..%2Fetc%2Fpasswd"} {
		w := srv.do(httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
		assert.Equal(t, http.StatusNotFound, w.Code, id)
		assert.Equal(t, map[string]any{"success": false, "error": "File not found or expired"}, decode(t, w))
	}
}

func TestDownload_MissingFileEvicts(t *testing.T) {
	srv := newServer(t)
	w := srv.do(uploadRequest(t, "r.pdf", testutil.PDF(testutil.TextPages(1)), nil))
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["download_id"].(string)

	a, err := srv.store.Lookup(id)
	require.NoError(t, err)
	require.NoError(t, os.Remove(a.OutputPath))

	dl := srv.do(httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	assert.Equal(t, http.StatusNotFound, dl.Code)
	assert.Zero(t, srv.store.Len())
}

// A download that already opened its file keeps streaming after the reaper
// removes the artifact.
func TestDownload_InFlightSurvivesEviction(t *testing.T) {
	srv := newServer(t)
	w := srv.do(uploadRequest(t, "r.pdf", testutil.PDF(testutil.TextPages(1)), nil))
	require.Equal(t, http.StatusOK, w.Code)
	id := decode(t, w)["download_id"].(string)

	a, err := srv.store.Lookup(id)
	require.NoError(t, err)
	f, err := os.Open(a.OutputPath)
	require.NoError(t, err)
	defer f.Close()

	srv.clock.Advance(artifact.TTL)
	assert.Equal(t, 1, srv.store.Sweep())

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	dl := srv.do(httptest.NewRequest(http.MethodGet, "/download/"+id, nil))
	assert.Equal(t, http.StatusNotFound, dl.Code)
}

func TestHealth(t *testing.T) {
	srv := newServer(t)
	_ = srv.do(uploadRequest(t, "r.pdf", testutil.PDF(testutil.TextPages(1)), nil))

	w := srv.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, "degraded", resp["status"])
	assert.Equal(t, map[string]any{"libreoffice": false, "tesseract": true}, resp["engines"])
	assert.Equal(t, map[string]any{"tesseract": "5.3.0"}, resp["versions"])
	assert.EqualValues(t, 1, resp["active_files"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newServer(t)
	_ = srv.do(uploadRequest(t, "r.pdf", testutil.PDF(testutil.TextPages(1)), nil))

	w := srv.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "docconvert_test_conversions_total")
	assert.Contains(t, body, "docconvert_test_artifacts_active 1")
}

func TestCORSPreflight(t *testing.T) {
	srv := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/upload", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	w := srv.do(req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://example.com", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestDownloadName(t *testing.T) {
	tests := []struct {
		in   string
		to   domain.Format
		want string
	}{
		{"report.pdf", domain.FormatDOCX, "report_converted.docx"},
		{"deck.final.pdf", domain.FormatPPTX, "deck.final_converted.pptx"},
		{`C:\Users\me\letter.docx`, domain.FormatPDF, "letter_converted.pdf"},
		{"../../etc/passwd.pdf", domain.FormatDOCX, "passwd_converted.docx"},
		{".pdf", domain.FormatDOCX, "converted_document.docx"},
		{"", domain.FormatDOCX, "converted_document.docx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, handlers.DownloadName(tt.in, tt.to), tt.in)
	}
}

func TestUpload_StorageFailureIs500(t *testing.T) {
	srv := newServer(t)
	srv.handler = NewRouter(observability.NopLogger(), Dependencies{
		Converter: failingConverter{err: domain.StorageError("disk full", errors.New("ENOSPC"))},
		Store:     srv.store,
	}, func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.Storage.ScratchDir = srv.scratch
		return cfg
	}())

	w := srv.do(uploadRequest(t, "a.pdf", testutil.PDF(testutil.TextPages(1)), nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decode(t, w)["error"])
	assert.Empty(t, scratchFiles(t, srv.scratch))
}

type failingConverter struct{ err error }

func (c failingConverter) Convert(context.Context, domain.ConversionRequest) (*domain.ConversionResult, error) {
	return nil, c.err
}

func TestScratchDirIsCreated(t *testing.T) {
	srv := newServer(t)
	nested := filepath.Join(srv.scratch, "nested", "dir")
	cfg := config.DefaultConfig()
	cfg.Storage.ScratchDir = nested
	h := NewRouter(observability.NopLogger(), Dependencies{
		Converter: failingConverter{err: domain.ValidationError("bad", nil)},
		Store:     srv.store,
	}, cfg)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "a.pdf", []byte("%PDF-1.4"), nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.DirExists(t, nested)
}
