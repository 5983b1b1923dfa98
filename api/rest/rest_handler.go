package rest

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/kshivamiitk/classboard/service"
)

type Handler struct {
	Service   *service.Service
	UploadDir string
}

func NewHandler(svc *service.Service, uploadDir string) *Handler {
	return &Handler{Service: svc, UploadDir: uploadDir}
}

// Uploaded decks are lecture PDFs; 50MB covers anything reasonable.
const maxUploadBytes = 50 << 20

type uploadResponse struct {
	Ok         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	ClassID    string `json:"class_id,omitempty"`
	TeacherKey string `json:"teacher_key,omitempty"`
	PDFURL     string `json:"pdf_url,omitempty"`
}

// HandleUpload accepts a multipart PDF upload and creates a class session
// around it. The response carries both credentials the teacher needs: the
// public class id to share and the private teacher key to keep.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.sendResponse(w, uploadResponse{Ok: false, Error: "no-file"})
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		h.sendResponse(w, uploadResponse{Ok: false, Error: "no-file"})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		h.sendResponse(w, uploadResponse{Ok: false, Error: "not-a-pdf"})
		return
	}

	fileUUID, err := uuid.NewV4()
	if err != nil {
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	filename := hex.EncodeToString(fileUUID.Bytes()) + ".pdf"

	outPath := filepath.Join(h.UploadDir, filename)
	out, err := os.Create(outPath)
	if err != nil {
		log.Printf("Failed to create upload file: %v", err)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, file); err != nil {
		log.Printf("Failed to write upload file: %v", err)
		os.Remove(outPath)
		http.Error(w, "failed to store file", http.StatusInternalServerError)
		return
	}

	class, err := h.Service.CreateClass(r.Context(), filename)
	if err != nil {
		log.Printf("Failed to create class: %v", err)
		os.Remove(outPath)
		http.Error(w, "failed to create class", http.StatusInternalServerError)
		return
	}

	h.sendResponse(w, uploadResponse{
		Ok:         true,
		ClassID:    class.ID,
		TeacherKey: class.TeacherKey,
		PDFURL:     "/files/" + filename,
	})
}

// HandleFile serves an uploaded PDF back to clients.
func (h *Handler) HandleFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	// filepath.Base strips any traversal the router let through
	filename = filepath.Base(filename)
	if filename == "." || filename == "/" || !strings.HasSuffix(filename, ".pdf") {
		http.NotFound(w, r)
		return
	}

	path := filepath.Join(h.UploadDir, filename)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	http.ServeFile(w, r, path)
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
