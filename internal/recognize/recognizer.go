// Package recognize wraps the external OCR service behind a small interface.
package recognize

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
	"time"

	"go.uber.org/zap"

	"github.com/notedrop/seiri/internal/config"
)

// Recognizer extracts text from an image file. An unreadable image is an
// error; an empty string is a valid result the pipeline treats as a skip.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// HTTPRecognizer calls an OCR HTTP service: the image is posted as
// multipart form data, the reply is JSON with a "text" field.
type HTTPRecognizer struct {
	endpoint string
	language string
	client   *http.Client
	logger   *zap.Logger
}

// Option configures an HTTPRecognizer.
type Option func(*HTTPRecognizer)

// WithLogger sets the recognizer's logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *HTTPRecognizer) {
		r.logger = logger
	}
}

// NewHTTPRecognizer builds a recognizer from configuration. The endpoint is
// required; construction fails fast rather than probing per call.
func NewHTTPRecognizer(cfg config.RecognizerConfig, opts ...Option) (*HTTPRecognizer, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("recognizer endpoint must be set")
	}
	r := &HTTPRecognizer{
		endpoint: cfg.Endpoint,
		language: cfg.Language,
		client:   &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type recognizeReply struct {
	Text string `json:"text"`
}

// Recognize posts the image and returns the extracted text.
func (r *HTTPRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	if r.language != "" {
		if err := form.WriteField("language", r.language); err != nil {
			return "", fmt.Errorf("failed to build request: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	start := time.Now()
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recognition request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("recognition service returned %d: %s", resp.StatusCode, payload)
	}

	var reply recognizeReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return "", fmt.Errorf("recognition reply unreadable: %w", err)
	}

	r.logger.Debug("recognized image",
		zap.String("image", filepath.Base(imagePath)),
		zap.Int("text_len", len(reply.Text)),
		zap.Duration("elapsed", time.Since(start)))
	return reply.Text, nil
}
