//go:build !ocr

package ocr

import (
	"testing"

	"github.com/mrzscan/mrzscan-backend/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestNewTesseract_NotEnabled(t *testing.T) {
	_, err := NewTesseract([]string{"eng"}, 11, "")
	assert.ErrorIs(t, err, ErrOCRNotEnabled)

	_, _, err = FromConfig(config.OCRConfig{Providers: []string{config.ProviderTesseract}})
	assert.ErrorIs(t, err, ErrOCRNotEnabled)
}
