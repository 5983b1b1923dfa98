package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// UploadResult is the bootstrap payload for a fresh class: the id students
// join with and the key the teacher reconnects with.
type UploadResult struct {
	Ok         bool   `json:"ok"`
	Error      string `json:"error,omitempty"`
	ClassID    string `json:"class_id,omitempty"`
	TeacherKey string `json:"teacher_key,omitempty"`
	PDFURL     string `json:"pdf_url,omitempty"`
}

// UploadPDF posts a PDF to the upload endpoint and returns the created
// class credentials. serverURL is the HTTP base, e.g. "http://localhost:8080".
func UploadPDF(ctx context.Context, httpClient *http.Client, serverURL string, pdfPath string) (UploadResult, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	file, err := os.Open(pdfPath)
	if err != nil {
		return UploadResult{}, err
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("pdf", filepath.Base(pdfPath))
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return UploadResult{}, err
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serverURL+"/upload", &body)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		return UploadResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return UploadResult{}, fmt.Errorf("upload failed with status %d", resp.StatusCode)
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return UploadResult{}, err
	}
	if !result.Ok {
		return result, fmt.Errorf("upload rejected: %s", result.Error)
	}
	return result, nil
}
