package pantry

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/zombor/pantry-tracker/internal/lineitems"
)

const (
	maxUploadSize        = 50 << 20 // 50MB, phone photos are large
	defaultExpiryDays    = 3
	maxExpiryDays        = 36500
	fileTooLargeError    = "File is too large. Maximum size is 50MB. Please compress or resize your image."
	noFileSelectedText   = "No file was selected. Please choose a file to upload."
	unsupportedImageText = "Unsupported image. Please upload a JPEG, PNG, GIF, HEIC or PDF file."
)

// jsonError writes {"error": message} with the given status
func jsonError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleHealth reports liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// contentTypeFor guesses a content type from the file extension
func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	default:
		return "application/octet-stream"
	}
}

// handleScanReceipt accepts a receipt image and returns the parsed scan
func (s *Server) handleScanReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize+1<<20)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			jsonError(w, fileTooLargeError, http.StatusRequestEntityTooLarge)
			return
		}
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		if errors.Is(err, http.ErrMissingFile) {
			jsonError(w, noFileSelectedText, http.StatusBadRequest)
			return
		}
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	defer f.Close()

	if header.Size > maxUploadSize {
		jsonError(w, fileTooLargeError, http.StatusRequestEntityTooLarge)
		return
	}

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}
	if len(data) == 0 {
		jsonError(w, "The selected file is empty.", http.StatusBadRequest)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(header.Header.Get("Content-Type")))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeFor(header.Filename)
	}

	scan, err := s.service.ScanReceipt(r.Context(), header.Filename, data, contentType)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, scan)
	case errors.Is(err, ErrNoTextFound), errors.Is(err, ErrNoItemsFound):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, ErrInvalidImage):
		jsonError(w, unsupportedImageText, http.StatusUnsupportedMediaType)
	case errors.Is(err, ErrUnreadable):
		jsonError(w, ErrUnreadable.Error(), http.StatusBadGateway)
	default:
		slog.Error("Error scanning receipt", "filename", header.Filename, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleParseText parses receipt text sent as JSON
func (s *Server) handleParseText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	items := s.service.ParseText(req.Text)
	if len(items) == 0 {
		jsonError(w, ErrNoItemsFound.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]lineitems.Item{"items": items})
}

// handleListScans returns every scan
func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := s.service.ListScans()
	if err != nil {
		slog.Error("Error listing scans", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if scans == nil {
		scans = []*Scan{}
	}
	writeJSON(w, http.StatusOK, scans)
}

// handleGetScan returns a single scan
func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	scan, err := s.service.GetScan(r.PathValue("id"))
	if err != nil {
		s.notFoundOrError(w, "Scan not found", err)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}

// handleGetScanFile returns the receipt image of a scan
func (s *Server) handleGetScanFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetScanFile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.notFoundOrError(w, "File not found", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteScan deletes a scan and its image
func (s *Server) handleDeleteScan(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteScan(r.Context(), r.PathValue("id")); err != nil {
		s.notFoundOrError(w, "Scan not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCommitItems adds reviewed items to the inventory
func (s *Server) handleCommitItems(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Items []CommitRequest `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		jsonError(w, "No items provided", http.StatusBadRequest)
		return
	}

	results := s.service.CommitItems(r.Context(), req.Items)

	status := http.StatusOK
	for _, res := range results {
		if res.Err != nil {
			status = http.StatusMultiStatus
			break
		}
	}
	writeJSON(w, status, map[string][]CommitResult{"results": results})
}

// handleExpiringItems lists items expiring within ?days=N
func (s *Server) handleExpiringItems(w http.ResponseWriter, r *http.Request) {
	days := defaultExpiryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, "days must be a non-negative integer", http.StatusBadRequest)
			return
		}
		if n > maxExpiryDays {
			jsonError(w, "days must be at most "+strconv.Itoa(maxExpiryDays), http.StatusBadRequest)
			return
		}
		days = n
	}

	items, err := s.service.ExpiringItems(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		slog.Error("Error listing expiring items", "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleListInventory lists the items at a location
func (s *Server) handleListInventory(w http.ResponseWriter, r *http.Request) {
	location, err := ParseLocation(r.PathValue("location"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	items, err := s.service.ListInventory(location)
	if err != nil {
		slog.Error("Error listing inventory", "location", location, "error", err)
		jsonError(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []*InventoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleDeleteInventoryItem removes an item from a location
func (s *Server) handleDeleteInventoryItem(w http.ResponseWriter, r *http.Request) {
	location, err := ParseLocation(r.PathValue("location"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.service.DeleteInventoryItem(location, r.PathValue("id")); err != nil {
		s.notFoundOrError(w, "Item not found", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) notFoundOrError(w http.ResponseWriter, message string, err error) {
	if errors.Is(err, ErrNotFound) {
		jsonError(w, message, http.StatusNotFound)
		return
	}
	slog.Error("Request failed", "error", err)
	jsonError(w, "Internal server error", http.StatusInternalServerError)
}
