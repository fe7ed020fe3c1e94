package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/spherical/doc-converter/internal/artifact"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
	"github.com/spherical/doc-converter/internal/validate"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 32 << 20

// Converter runs one conversion to completion.
type Converter interface {
	Convert(ctx context.Context, req domain.ConversionRequest) (*domain.ConversionResult, error)
}

// ConversionConfig holds upload limits and the scratch directory.
type ConversionConfig struct {
	ScratchDir     string
	MaxUploadBytes int64
}

// ConversionHandler serves upload, download and status.
type ConversionHandler struct {
	logger    *observability.Logger
	converter Converter
	store     *artifact.Store
	sizes     *validate.Validator
	cfg       ConversionConfig
}

// NewConversionHandler creates a new conversion handler.
func NewConversionHandler(logger *observability.Logger, converter Converter, store *artifact.Store, cfg ConversionConfig) *ConversionHandler {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = validate.DefaultMaxSize
	}
	return &ConversionHandler{
		logger:    logger.WithOperation("conversion-api"),
		converter: converter,
		store:     store,
		sizes:     validate.NewValidator(cfg.MaxUploadBytes),
		cfg:       cfg,
	}
}

// UploadResponseDTO is returned by a successful upload.
type UploadResponseDTO struct {
	Success          bool   `json:"success"`
	DownloadID       string `json:"download_id"`
	ExpiryTime       int64  `json:"expiry_time"`
	FileSize         int64  `json:"file_size"`
	Pages            int    `json:"pages"`
	PDFType          string `json:"pdf_type"`
	Strategy         string `json:"strategy"`
	Message          string `json:"message"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

// StatusResponseDTO reports the remaining lifetime of an artifact.
type StatusResponseDTO struct {
	Success              bool    `json:"success"`
	Expired              bool    `json:"expired"`
	TimeRemainingSeconds int     `json:"time_remaining_seconds"`
	TimeRemainingMinutes float64 `json:"time_remaining_minutes"`
	FileSize             int64   `json:"file_size"`
}

// ExpiredDTO is returned for unknown or expired handles.
type ExpiredDTO struct {
	Success bool `json:"success"`
	Expired bool `json:"expired"`
}

// Upload handles POST /upload. The multipart field "file" carries the
// document; the optional field "target" names the output format.
func (h *ConversionHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := h.logger.WithContext(ctx)

	// Leave room for multipart framing so an exactly-at-limit file is accepted.
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, domain.Reason(h.sizes.CheckSize(h.cfg.MaxUploadBytes+1)))
			return
		}
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			writeError(w, http.StatusBadRequest, "No file provided")
			return
		}
		writeError(w, http.StatusBadRequest, "Malformed upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		// A file part with an empty filename is parsed as a plain value.
		if _, sent := r.MultipartForm.Value["file"]; sent {
			writeError(w, http.StatusBadRequest, "No file selected")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if err := h.sizes.CheckSize(header.Size); err != nil {
		writeError(w, http.StatusBadRequest, domain.Reason(err))
		return
	}

	source, ok := domain.FormatFromPath(header.Filename)
	if !ok || (source != domain.FormatPDF && source != domain.FormatDOCX) {
		writeError(w, http.StatusBadRequest, "Only PDF and Word (.docx) files are allowed")
		return
	}

	target, err := resolveTarget(source, r.FormValue("target"))
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.Reason(err))
		return
	}

	inputPath, err := h.save(file, source)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store upload")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Info().
		Str("file", header.Filename).
		Int64("size", header.Size).
		Str("target", string(target)).
		Str("remote", r.RemoteAddr).
		Msg("File uploaded")

	result, err := h.converter.Convert(ctx, domain.ConversionRequest{
		SourcePath:   inputPath,
		SourceFormat: source,
		Target:       target,
		OriginalName: header.Filename,
		Requester:    r.RemoteAddr,
	})
	if err != nil {
		removeQuietly(inputPath)
		status := statusFor(err)
		if status >= 500 {
			log.Error().Err(err).Msg("Conversion failed unexpectedly")
			writeError(w, status, "Internal server error")
			return
		}
		writeError(w, status, domain.Reason(err))
		return
	}

	info, err := os.Stat(result.OutputPath)
	if err != nil {
		removeQuietly(inputPath)
		removeQuietly(result.OutputPath)
		log.Error().Err(err).Msg("Converted output missing")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	a, err := h.store.Register(artifact.Registration{
		OutputPath:  result.OutputPath,
		InputPath:   inputPath,
		Requester:   r.RemoteAddr,
		DisplayName: DownloadName(header.Filename, target),
		Pages:       result.Classification.PageCount,
	})
	if err != nil {
		removeQuietly(inputPath)
		removeQuietly(result.OutputPath)
		log.Error().Err(err).Msg("Failed to register artifact")
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, UploadResponseDTO{
		Success:          true,
		DownloadID:       a.Handle,
		ExpiryTime:       a.ExpiresAt.Unix(),
		FileSize:         info.Size(),
		Pages:            result.Classification.PageCount,
		PDFType:          result.Classification.DocumentType(),
		Strategy:         result.Strategy,
		Message:          result.Message,
		ExpiresInMinutes: int(artifact.TTL / time.Minute),
	})
}

// Download handles GET /download/{id}.
func (h *ConversionHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !artifact.ValidHandle(id) {
		writeError(w, http.StatusNotFound, "File not found or expired")
		return
	}

	a, err := h.store.Lookup(id)
	if err != nil {
		writeError(w, statusFor(err), domain.Reason(err))
		return
	}

	f, err := os.Open(a.OutputPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.store.Evict(id)
			writeError(w, http.StatusNotFound, "File not found or expired")
			return
		}
		h.logger.WithContext(r.Context()).Error().Err(err).Msg("Failed to open artifact")
		writeError(w, http.StatusInternalServerError, "Download failed")
		return
	}
	// An open handle keeps streaming even if the reaper unlinks the file.
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Download failed")
		return
	}

	format, _ := domain.FormatFromPath(a.OutputPath)
	w.Header().Set("Content-Type", MIMEType(format))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.DisplayName}))
	w.Header().Set("Cache-Control", "no-store")
	http.ServeContent(w, r, a.DisplayName, info.ModTime(), f)
}

// Status handles GET /status/{id}.
func (h *ConversionHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, remaining, err := h.store.Status(id)
	if err != nil {
		if domain.TypeOf(err) == domain.ErrorTypeNotFound {
			writeJSON(w, http.StatusOK, ExpiredDTO{Success: false, Expired: true})
			return
		}
		writeError(w, http.StatusInternalServerError, "Status check failed")
		return
	}

	var size int64
	if info, err := os.Stat(a.OutputPath); err == nil {
		size = info.Size()
	}

	writeJSON(w, http.StatusOK, StatusResponseDTO{
		Success:              true,
		Expired:              false,
		TimeRemainingSeconds: int(remaining.Seconds()),
		TimeRemainingMinutes: math.Round(remaining.Minutes()*10) / 10,
		FileSize:             size,
	})
}

// save copies the upload into the scratch directory under a fresh name
// carrying the source extension.
func (h *ConversionHandler) save(src io.Reader, format domain.Format) (string, error) {
	if err := os.MkdirAll(h.cfg.ScratchDir, 0o755); err != nil {
		return "", domain.StorageError("failed to create scratch directory", err)
	}
	path := filepath.Join(h.cfg.ScratchDir, "upload_"+uuid.NewString()+format.Extension())

	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", domain.StorageError("failed to create upload file", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		removeQuietly(path)
		return "", domain.StorageError("failed to write upload file", err)
	}
	if err := dst.Close(); err != nil {
		removeQuietly(path)
		return "", domain.StorageError("failed to write upload file", err)
	}
	return path, nil
}

func resolveTarget(source domain.Format, requested string) (domain.Format, error) {
	if strings.TrimSpace(requested) == "" {
		target, _ := domain.DefaultTarget(source)
		return target, nil
	}
	target, ok := domain.ParseFormat(requested)
	if !ok || !domain.SupportsConversion(source, target) {
		return "", domain.ValidationError(
			fmt.Sprintf("Conversion from %s to %s is not supported", source, requested), domain.ErrFormatMismatch)
	}
	return target, nil
}

// DownloadName derives "<stem>_converted.<ext>" from the client file name.
func DownloadName(original string, target domain.Format) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '"' || r == '/' {
			return -1
		}
		return r
	}, stem)
	stem = strings.TrimSpace(stem)
	if stem == "" || stem == "." {
		return "converted_document" + target.Extension()
	}
	return stem + "_converted" + target.Extension()
}

func removeQuietly(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
