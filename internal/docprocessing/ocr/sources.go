package ocr

import (
	"fmt"
	"io"

	"github.com/mrzscan/mrzscan-backend/pkg/config"
)

// FromConfig builds the configured text sources in provider order. The
// returned closer releases any engine that holds native resources.
func FromConfig(cfg config.OCRConfig) ([]TextSource, io.Closer, error) {
	var (
		sources []TextSource
		closers multiCloser
	)
	for _, name := range cfg.Providers {
		switch name {
		case config.ProviderOCRSpace:
			sources = append(sources, NewOCRSpace(cfg.OCRSpace.URL, cfg.OCRSpace.APIKey, cfg.OCRSpace.Timeout))
		case config.ProviderTesseract:
			t, err := NewTesseract(cfg.Tesseract.Languages, cfg.Tesseract.PageSegMode, cfg.Tesseract.Whitelist)
			if err != nil {
				closers.Close()
				return nil, nil, err
			}
			sources = append(sources, t)
			closers = append(closers, t)
		default:
			closers.Close()
			return nil, nil, fmt.Errorf("ocr: unknown provider %q", name)
		}
	}
	return sources, closers, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for _, c := range m {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
