package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// DefaultMaxPhotoBytes caps a single upload.
const DefaultMaxPhotoBytes = 10 << 20

// photoExt maps accepted sniffed image types to the stored file extension.
var photoExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// PhotoHandler stores uploaded memory photos on local disk and serves them.
type PhotoHandler struct {
	dir      string
	maxBytes int64
}

// NewPhotoHandler creates a handler rooted at dir.
func NewPhotoHandler(dir string, maxBytes int64) *PhotoHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxPhotoBytes
	}
	return &PhotoHandler{dir: dir, maxBytes: maxBytes}
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the photo dir.
func (h *PhotoHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return filepath.Join(h.dir, cleaned), nil
}

// ServeFile handles GET /photos/{filename}.
func (h *PhotoHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	abs, err := h.safeName(chi.URLParam(r, "filename"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); os.IsNotExist(statErr) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /upload (multipart/form-data, field "photo").
// The declared type must be image/* and the content must sniff as one of
// the photoExt types; the stored extension comes from the sniffed type.
//
//	@Summary		Upload a memory photo
//	@Tags			photos
//	@Accept			mpfd
//	@Produce		json
//	@Param			photo	formData	file	true	"Image file"
//	@Success		200		{object}	PhotoUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		500		{object}	errResponse
//	@Router			/upload [post]
func (h *PhotoHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+(1<<20))

	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("No photo file provided"))
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		writeJSON(w, http.StatusBadRequest, errorBody("photo exceeds size limit"))
		return
	}
	if !strings.HasPrefix(header.Header.Get("Content-Type"), "image/") {
		writeJSON(w, http.StatusBadRequest, errorBody("No photo file provided"))
		return
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, errorWith("could not read photo", err))
		return
	}
	head = head[:n]
	ext, ok := photoExt[http.DetectContentType(head)]
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("Unsupported image type"))
		return
	}
	name := uuid.NewString() + ext

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorWith("Failed to upload photo", err))
		return
	}
	path := filepath.Join(h.dir, name)
	if err := writePhoto(path, io.MultiReader(bytes.NewReader(head), file)); err != nil {
		slog.Error("photo write failed", slog.String("name", name), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorWith("Failed to upload photo", err))
		return
	}

	writeJSON(w, http.StatusOK, PhotoUploadResponse{
		Success:  true,
		PhotoURL: BasePath + "/photos/" + name,
		PublicID: name,
	})
}

// writePhoto copies src into a new file at path. A partial file is removed.
func writePhoto(path string, src io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}
