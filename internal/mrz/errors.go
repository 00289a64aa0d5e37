package mrz

import (
	"errors"
	"fmt"
)

// Decode failure kinds. A checksum mismatch is not an error: it is reported
// through Record.Checks.
var (
	ErrMalformedInput    = errors.New("mrz: malformed input")
	ErrUnsupportedFormat = errors.New("mrz: unsupported format")
	ErrDecodeFailure     = errors.New("mrz: decode failure")
)

// Stage is the engine state in which a decode attempt failed.
type Stage string

const (
	StageNormalizing Stage = "normalizing"
	StageClassifying Stage = "classifying"
	StageDecoding    Stage = "decoding"
	StageValidating  Stage = "validating"
)

// DecodeError carries the failure kind and the stage that produced it.
// errors.Is(err, ErrMalformedInput) and friends match on Kind.
type DecodeError struct {
	Stage  Stage
	Kind   error
	Detail string
}

func (e *DecodeError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v (%s)", e.Kind, e.Stage)
	}
	return fmt.Sprintf("%v (%s): %s", e.Kind, e.Stage, e.Detail)
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

func failf(stage Stage, kind error, format string, args ...any) error {
	return &DecodeError{Stage: stage, Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
