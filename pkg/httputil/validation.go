package httputil

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mrzscan/mrzscan-backend/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var (
	customMu       sync.RWMutex
	customMessages = map[string]string{}
)

func init() {
	mustRegister("rfc3339", "must be an RFC 3339 timestamp", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.RFC3339, fl.Field().String())
		return err == nil
	})
}

// Validate validates a struct using go-playground/validator
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.BadRequest(err.Error())
	}

	details := make(map[string]string)
	for _, e := range validationErrors {
		details[e.Namespace()] = formatValidationError(e)
	}
	return errors.Validation(details)
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "required_without":
		return "required when " + e.Param() + " is empty"
	case "excluded_with":
		return "cannot be combined with " + e.Param()
	case "min":
		return "must have at least " + e.Param() + " entries"
	case "max":
		return "must have at most " + e.Param() + " entries"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + e.Param()
	}

	customMu.RLock()
	msg, ok := customMessages[e.Tag()]
	customMu.RUnlock()
	if ok {
		return msg
	}
	return "invalid value"
}

// RegisterCustomValidation registers a validation tag and the message
// reported when a field fails it. Call it from init, before any request is
// validated.
func RegisterCustomValidation(tag, message string, fn validator.Func) error {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		return err
	}
	customMu.Lock()
	customMessages[tag] = message
	customMu.Unlock()
	return nil
}

func mustRegister(tag, message string, fn validator.Func) {
	if err := RegisterCustomValidation(tag, message, fn); err != nil {
		panic(err)
	}
}
