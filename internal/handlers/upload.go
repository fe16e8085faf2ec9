package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gamestore/internal/imagehost"
	"gamestore/pkg/logging/logging"
)

const (
	// MaxImageSize is the largest accepted upload.
	MaxImageSize = 5 << 20
	// MaxUploadBody leaves room for multipart framing around the image.
	MaxUploadBody = MaxImageSize + 512<<10

	sniffLen = 512
)

// UploadHandler forwards admin image uploads to the image host.
type UploadHandler struct {
	Images *imagehost.Client
}

func NewUploadHandler(images *imagehost.Client) *UploadHandler {
	return &UploadHandler{Images: images}
}

// UploadImage handles POST /api/upload-image with a multipart "image" field.
func (h *UploadHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	logger := logging.L(r.Context())

	if !h.Images.Configured() {
		writeError(w, http.StatusInternalServerError, "Image upload service is not configured")
		return
	}

	if err := r.ParseMultipartForm(MaxImageSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Image must be smaller than 5MB")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file selected")
		return
	}
	defer file.Close()

	if hdr.Size > MaxImageSize {
		writeError(w, http.StatusBadRequest, "Image must be smaller than 5MB")
		return
	}

	contentType, err := detectContentType(file, hdr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read image file")
		return
	}
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, http.StatusBadRequest, "Please select an image file")
		return
	}

	img, err := h.Images.Upload(r.Context(), imagehost.Upload{
		Name:        "game-" + uuid.NewString(),
		Filename:    hdr.Filename,
		ContentType: contentType,
		Body:        file,
	})
	if err != nil {
		logger.Error("image upload failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Image upload failed")
		return
	}

	logger.Info("image uploaded",
		zap.String("filename", hdr.Filename),
		zap.Int64("size", hdr.Size),
		zap.String("url", img.ImageURL),
	)
	writeData(w, img)
}

// detectContentType trusts the part header when present and sniffs the
// content otherwise. The file is rewound afterwards.
func detectContentType(f multipart.File, hdr *multipart.FileHeader) (string, error) {
	if ct := hdr.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct, nil
	}

	buf := make([]byte, sniffLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	return http.DetectContentType(buf[:n]), nil
}
