package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zombor/expense-scanner/internal/requestctx"
	"github.com/zombor/expense-scanner/internal/scanning"
)

const (
	// multipartOverhead leaves room for boundaries and part headers on top of the image itself
	multipartOverhead = 1 << 20
	// maxFormMemory is held in memory before multipart parts spill to temp files
	maxFormMemory = 32 << 20
)

// writeJSON encodes v as the response body with the given status
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Error encoding response",
			"req_id", requestctx.RequestID(r.Context()),
			"status", status,
			"error", err,
		)
	}
}

// writeError maps err onto its status code and public message
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	serr := scanning.Classify(err)
	s.writeJSON(w, r, serr.Status(), ExtractResponse{
		Success: false,
		Error:   serr.PublicMessage(),
	})
}

// reject records and writes a failure detected before extraction starts
func (s *Server) reject(w http.ResponseWriter, r *http.Request, kind scanning.Kind, err error) {
	s.metrics.ObserveExtraction(kind.String(), string(kind.Class()))
	s.logger.Warn("Rejected upload",
		"req_id", requestctx.RequestID(r.Context()),
		"kind", kind.String(),
		"error", err,
	)
	s.writeError(w, r, &scanning.Error{Kind: kind, Err: err})
}

// isBodyTooLarge reports whether err came from the MaxBytesReader limit
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "http: request body too large")
}

// handleExtractReceipt extracts structured data from an uploaded receipt image
func (s *Server) handleExtractReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, scanning.MaxImageSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		if isBodyTooLarge(err) {
			s.reject(w, r, scanning.KindFileTooLarge, err)
			return
		}
		s.reject(w, r, scanning.KindNoFileProvided, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	f, header, err := r.FormFile("file")
	if err != nil {
		s.reject(w, r, scanning.KindNoFileProvided, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		if isBodyTooLarge(err) {
			s.reject(w, r, scanning.KindFileTooLarge, err)
			return
		}
		s.reject(w, r, scanning.KindInternal, err)
		return
	}

	img := scanning.Image{
		Filename:    scanning.SanitizeFilename(header.Filename),
		ContentType: scanning.DetectContentType(header.Header.Get("Content-Type"), data),
		Size:        header.Size,
		Data:        data,
	}

	record, err := s.extractor.Extract(r.Context(), img)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, ExtractResponse{
		Success: true,
		Data:    record,
	})
}

// handleHealth reports liveness and whether provider credentials are present
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{
		Status:                "healthy",
		Timestamp:             time.Now().UTC().Format(time.RFC3339),
		Provider:              s.extractor.Provider(),
		CredentialsConfigured: s.extractor.Configured(),
	})
}
