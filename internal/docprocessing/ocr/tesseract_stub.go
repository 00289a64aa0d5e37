//go:build !ocr

package ocr

import "context"

// Tesseract is unavailable in this build.
type Tesseract struct{}

// NewTesseract always returns ErrOCRNotEnabled. Build with -tags ocr.
func NewTesseract(languages []string, pageSegMode int, whitelist string) (*Tesseract, error) {
	return nil, ErrOCRNotEnabled
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) Text(ctx context.Context, image []byte) (string, error) {
	return "", ErrOCRNotEnabled
}

func (t *Tesseract) Close() error { return nil }
