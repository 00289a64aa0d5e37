package errors

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
	"github.com/stretchr/testify/assert"
)

func TestUnprocessable(t *testing.T) {
	cause := errors.New("need at least 2 lines")

	err := Unprocessable("MRZ_MALFORMED_INPUT", "mrz.malformed_input", cause)

	assert.Equal(t, http.StatusUnprocessableEntity, err.StatusCode)
	assert.Equal(t, "MRZ_MALFORMED_INPUT", err.Code)
	assert.Equal(t, "could not read document", err.Message)
	assert.True(t, Is(err, ErrUnprocessable))
	assert.True(t, Is(err, cause))
}

func TestAppError_Localize(t *testing.T) {
	err := Unprocessable("MRZ_MALFORMED_INPUT", "mrz.malformed_input", errors.New("x"))

	de := i18n.WithLocale(context.Background(), i18n.LocaleGerman)
	assert.Equal(t, "Dokument konnte nicht gelesen werden", err.Localize(de))
	assert.Equal(t, "could not read document", err.Localize(context.Background()))
}

func TestUnsupportedMediaType(t *testing.T) {
	err := UnsupportedMediaType("application/zip")

	assert.Equal(t, http.StatusUnsupportedMediaType, err.StatusCode)
	assert.Equal(t, "unsupported media type application/zip", err.Error())
	assert.Equal(t, "Nicht unterstützter Medientyp application/zip", err.LocalizeWith(i18n.NewLocalizer(i18n.LocaleGerman)))
}

func TestWrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, "OCR_UNAVAILABLE", "ocr provider unavailable", http.StatusBadGateway)

	assert.Equal(t, "ocr provider unavailable: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	var appErr *AppError
	assert.True(t, As(error(err), &appErr))
	assert.Equal(t, http.StatusBadGateway, appErr.StatusCode)
}
