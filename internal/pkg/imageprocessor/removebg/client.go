// Package removebg calls an external background matting service. The
// service takes the original image and returns a PNG with transparent
// background.
package removebg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/pixelmint/pixelmint/internal/pkg/imageprocessor"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient builds a client against the matting service endpoint. The
// timeout bounds the whole request; there are no internal retries, the
// caller decides whether a failed image is retried.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: defaultTimeout},
	}
}

// RemoveBackground posts the image and returns the matted PNG bytes. Any
// transport failure, timeout or non-200 answer maps to
// imageprocessor.ErrServiceUnavailable.
func (c *Client) RemoveBackground(ctx context.Context, imageBytes []byte) ([]byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image_file", "image")
	if err != nil {
		return nil, fmt.Errorf("build matting request: %w", err)
	}
	if _, err := part.Write(imageBytes); err != nil {
		return nil, fmt.Errorf("build matting request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("build matting request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("build matting request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Error(fmt.Sprintf("[RemoveBG] request failed: %v", err))
		return nil, fmt.Errorf("matting service: %v: %w", err, imageprocessor.ErrServiceUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error(fmt.Sprintf("[RemoveBG] unexpected status %d", resp.StatusCode))
		return nil, fmt.Errorf("matting service status %d: %w", resp.StatusCode, imageprocessor.ErrServiceUnavailable)
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("matting service read: %v: %w", err, imageprocessor.ErrServiceUnavailable)
	}
	return out, nil
}
