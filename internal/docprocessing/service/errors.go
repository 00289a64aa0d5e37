package service

import (
	"errors"
	"net/http"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/processor"
	apperrors "github.com/mrzscan/mrzscan-backend/pkg/errors"
)

// CodeOCRUnavailable is reported when no text source could read an image
const CodeOCRUnavailable = "OCR_UNAVAILABLE"

// toAppError maps processing failures to API errors. Decoder errors keep
// their kind: unreadable input is 422, an internal decoder fault is 500.
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	switch domain.ErrorCode(err) {
	case domain.CodeMalformedInput:
		return apperrors.Unprocessable(domain.CodeMalformedInput, "mrz.malformed_input", err)
	case domain.CodeUnsupportedFormat:
		return apperrors.Unprocessable(domain.CodeUnsupportedFormat, "mrz.unsupported_format", err)
	case domain.CodeDecodeFailure:
		e := apperrors.NewWithKey(domain.CodeDecodeFailure, "mrz.decode_failure", http.StatusInternalServerError)
		e.Err = err
		return e
	}

	switch {
	case errors.Is(err, ocr.ErrNoText), errors.Is(err, processor.ErrNotText), errors.Is(err, ocr.ErrUnsupportedImage):
		return apperrors.Unprocessable(domain.CodeMalformedInput, "mrz.malformed_input", err)
	}

	e := apperrors.NewWithKey(CodeOCRUnavailable, "errors.ocr_unavailable", http.StatusBadGateway)
	e.Err = err
	return e
}

// pickError chooses the most telling failure among processor attempts:
// a decoder verdict over an OCR outage, and either over a processor that
// merely did not accept the input type.
func pickError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	for _, err := range errs {
		if domain.ErrorCode(err) != "" {
			return err
		}
	}
	for _, err := range errs {
		if !errors.Is(err, processor.ErrNotText) && !errors.Is(err, ocr.ErrUnsupportedImage) {
			return err
		}
	}
	return errs[len(errs)-1]
}
