package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/brunobiangulo/auditor"
	"github.com/brunobiangulo/auditor/extract"
	"github.com/brunobiangulo/auditor/parser"
	"github.com/brunobiangulo/auditor/record"
	"github.com/brunobiangulo/auditor/verify"
)

type handler struct {
	engine   auditor.Engine
	maxBytes int64
}

func newHandler(e auditor.Engine, maxBytes int64) *handler {
	return &handler{engine: e, maxBytes: maxBytes}
}

// routes builds the mux and its middleware chain:
// recovery -> cors -> auth -> logging -> limit -> mux
func (h *handler) routes(apiKey, corsOrigins string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /verify", h.handleVerify)
	mux.HandleFunc("GET /health", h.handleHealth)

	var handler http.Handler = mux
	handler = limitMiddleware(h.maxBytes, handler)
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}

// POST /verify
// Multipart form: "pdf" (report), "table" or "csv" (tabulation), optional
// "round", "province" and "format" (tabulation format, from the file name
// by default).
// A failed phase is a 200 with passed=false.
func (h *handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: expected multipart form with 'pdf' and 'table' files")
		return
	}

	pdfFile, pdfHeader, err := r.FormFile("pdf")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdf file is required")
		return
	}
	defer pdfFile.Close()

	tableFile, tableHeader, err := r.FormFile("table")
	if err != nil {
		tableFile, tableHeader, err = r.FormFile("csv")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "table (or csv) file is required")
		return
	}
	defer tableFile.Close()

	format := r.FormValue("format")
	if format == "" {
		format = parser.FormatOf(filepath.Base(tableHeader.Filename))
	}

	res, err := h.engine.Verify(ctx, auditor.Input{
		PDF:         pdfFile,
		PDFSize:     pdfHeader.Size,
		Table:       tableFile,
		TableFormat: format,
		Round:       record.ParseRound(r.FormValue("round")),
		Province:    strings.TrimSpace(r.FormValue("province")),
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			slog.Error("verify error", "pdf", pdfHeader.Filename, "table", tableHeader.Filename, "error", err)
			writeError(w, status, "verification failed")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusFor maps engine errors to HTTP status codes. Problems with the
// uploaded files are the caller's to fix.
func statusFor(err error) int {
	switch {
	case errors.Is(err, auditor.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrSchema),
		errors.Is(err, extract.ErrExtraction),
		errors.Is(err, verify.ErrRoundMismatch),
		errors.Is(err, auditor.ErrRoundNotDetected),
		errors.Is(err, auditor.ErrParsingFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
