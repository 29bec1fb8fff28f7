// Package server implements the file-upload endpoint. Uploads are stored on
// local disk under content-free unique names and served back under the
// public /uploads/ route; the chat core only ever consumes the metadata
// returned here when clients relay file and video events.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campfire-chat/campfire/internal/protocol"
)

// UploadHandler accepts a single multipart file under the "file" field,
// stores it in the upload directory as <unix-ms>-<random><ext>, and
// responds with the metadata the client relays in its file event.
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed. Upload endpoint only accepts POST requests.", http.StatusMethodNotAllowed)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file uploaded"})
		return
	}
	defer func() {
		_ = file.Close()
	}()

	cfg := currentConfig()
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Printf("Error creating upload directory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Upload failed"})
		return
	}

	storedName := uploadName(header.Filename)
	dst, err := os.Create(filepath.Join(cfg.UploadDir, storedName))
	if err != nil {
		log.Printf("Error creating upload file: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Upload failed"})
		return
	}
	defer func() {
		_ = dst.Close()
	}()

	size, err := io.Copy(dst, file)
	if err != nil {
		log.Printf("Error storing upload %s: %v", storedName, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Upload failed"})
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	writeJSON(w, http.StatusOK, protocol.FileInfo{
		Name: header.Filename,
		URL:  fmt.Sprintf("%s://%s/uploads/%s", scheme, r.Host, storedName),
		Type: header.Header.Get("Content-Type"),
		Size: size,
	})
}

// UploadsHandler serves stored uploads under the /uploads/ route.
func UploadsHandler(w http.ResponseWriter, r *http.Request) {
	cfg := currentConfig()
	fs := http.StripPrefix("/uploads/", http.FileServer(http.Dir(cfg.UploadDir)))
	fs.ServeHTTP(w, r)
}

// uploadName builds a unique stored name that reveals nothing about the
// original file beyond its extension.
func uploadName(original string) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%d-%s%s", time.Now().UnixMilli(), random, filepath.Ext(original))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error writing JSON response: %v", err)
	}
}
