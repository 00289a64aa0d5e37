//go:build ocr

package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract reads text with a local Tesseract engine. gosseract clients are
// not safe for concurrent use, so calls are serialised.
type Tesseract struct {
	mu     sync.Mutex
	client *gosseract.Client
}

// NewTesseract creates an engine for the given languages (for example
// "eng", "fra"), page segmentation mode and character whitelist.
func NewTesseract(languages []string, pageSegMode int, whitelist string) (*Tesseract, error) {
	client := gosseract.NewClient()
	if len(languages) > 0 {
		if err := client.SetLanguage(languages...); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract: set language: %w", err)
		}
	}
	if err := client.SetPageSegMode(gosseract.PageSegMode(pageSegMode)); err != nil {
		client.Close()
		return nil, fmt.Errorf("tesseract: set page segmentation mode: %w", err)
	}
	if whitelist != "" {
		if err := client.SetWhitelist(whitelist); err != nil {
			client.Close()
			return nil, fmt.Errorf("tesseract: set whitelist: %w", err)
		}
	}
	return &Tesseract{client: client}, nil
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Text(ctx context.Context, image []byte) (string, error) {
	if !Sniff(image).IsImage() {
		return "", ErrUnsupportedImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: recognise: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}

// Close releases the engine
func (t *Tesseract) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
