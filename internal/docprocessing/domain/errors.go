package domain

import (
	"errors"

	"github.com/mrzscan/mrzscan-backend/internal/mrz"
)

// Error codes reported for documents that could not be decoded
const (
	CodeMalformedInput    = "MRZ_MALFORMED_INPUT"
	CodeUnsupportedFormat = "MRZ_UNSUPPORTED_FORMAT"
	CodeDecodeFailure     = "MRZ_DECODE_FAILURE"
)

// ErrorCode returns the code for a decode error, or "" when err did not come
// from the decoder.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, mrz.ErrMalformedInput):
		return CodeMalformedInput
	case errors.Is(err, mrz.ErrUnsupportedFormat):
		return CodeUnsupportedFormat
	case errors.Is(err, mrz.ErrDecodeFailure):
		return CodeDecodeFailure
	}
	return ""
}

// ErrorStage returns the decoder stage that failed, or "" when err did not
// come from the decoder.
func ErrorStage(err error) string {
	var de *mrz.DecodeError
	if errors.As(err, &de) {
		return string(de.Stage)
	}
	return ""
}
