// Package imagehost uploads images to an imgbb-compatible hosting API.
package imagehost

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"
)

const uploadPath = "/api/1/upload"

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("imagehost: upload service is not configured")

type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // default: 30s
	HTTPClient *http.Client
}

// Image is the set of URLs the host returns for one upload.
type Image struct {
	ImageURL   string `json:"imageUrl"`
	DisplayURL string `json:"displayUrl"`
	ThumbURL   string `json:"thumbUrl"`
}

// Upload describes a file to send.
type Upload struct {
	Name        string
	Filename    string
	ContentType string
	Body        io.Reader
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("imagehost"),
	}
}

// Configured reports whether uploads can be attempted.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

type uploadResponse struct {
	StatusCode int    `json:"status_code"`
	StatusTxt  string `json:"status_txt"`
	Error      *struct {
		Message string `json:"message"`
	} `json:"error"`
	Image *struct {
		URL        string     `json:"url"`
		DisplayURL string     `json:"display_url"`
		Thumb      *urlHolder `json:"thumb"`
		Medium     *urlHolder `json:"medium"`
	} `json:"image"`
}

type urlHolder struct {
	URL string `json:"url"`
}

// Upload sends one image and returns its hosted URLs.
func (c *Client) Upload(ctx context.Context, up Upload) (*Image, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	body, contentType, err := encodeMultipart(up)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+uploadPath, body)
	if err != nil {
		return nil, fmt.Errorf("imagehost: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-API-Key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagehost: upload: %w", err)
	}
	defer resp.Body.Close()

	var out uploadResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out)

	c.logger.Debug("image upload response",
		zap.Int("status", resp.StatusCode),
		zap.Int("status_code", out.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || out.StatusCode != http.StatusOK {
		msg := "unknown error"
		switch {
		case out.Error != nil && out.Error.Message != "":
			msg = out.Error.Message
		case out.StatusTxt != "":
			msg = out.StatusTxt
		case decodeErr != nil:
			msg = resp.Status
		}
		return nil, fmt.Errorf("imagehost: upload failed: %s", msg)
	}

	if out.Image == nil || out.Image.URL == "" {
		return nil, errors.New("imagehost: unexpected response structure")
	}

	img := &Image{
		ImageURL:   out.Image.URL,
		DisplayURL: out.Image.URL,
		ThumbURL:   out.Image.URL,
	}
	if out.Image.DisplayURL != "" {
		img.DisplayURL = out.Image.DisplayURL
	}
	switch {
	case out.Image.Thumb != nil && out.Image.Thumb.URL != "":
		img.ThumbURL = out.Image.Thumb.URL
	case out.Image.Medium != nil && out.Image.Medium.URL != "":
		img.ThumbURL = out.Image.Medium.URL
	}
	return img, nil
}

func encodeMultipart(up Upload) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="source"; filename=%q`, up.Filename))
	if up.ContentType != "" {
		h.Set("Content-Type", up.ContentType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("imagehost: create form part: %w", err)
	}
	if _, err := io.Copy(part, up.Body); err != nil {
		return nil, "", fmt.Errorf("imagehost: copy image: %w", err)
	}
	if up.Name != "" {
		if err := mw.WriteField("name", up.Name); err != nil {
			return nil, "", fmt.Errorf("imagehost: write name: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("imagehost: close form: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}
