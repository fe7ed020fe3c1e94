// Package handlers provides HTTP handlers for the conversion API.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/spherical/doc-converter/internal/domain"
)

// ErrorDTO is the body of every failed request.
type ErrorDTO struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorDTO{Success: false, Error: message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsClientError(err):
		return http.StatusBadRequest
	case domain.TypeOf(err) == domain.ErrorTypeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

var mimeTypes = map[domain.Format]string{
	domain.FormatPDF:  "application/pdf",
	domain.FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	domain.FormatPPTX: "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// MIMEType returns the content type served for a format.
func MIMEType(f domain.Format) string {
	if t, ok := mimeTypes[f]; ok {
		return t
	}
	return "application/octet-stream"
}
