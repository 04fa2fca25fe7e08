package middleware

import (
	stderrors "errors"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one rejected request field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var validationMessages = map[string]string{
	"required": "field is required",
	"email":    "invalid email format",
	"min":      "value is too short",
	"max":      "value is too long",
	"gte":      "value is too small",
	"lte":      "value is too large",
	"gt":       "value must be positive",
	"oneof":    "value is not one of the allowed options",
	"mrnumber": "must look like MR-YYYY-NNNN",
}

func validationDetails(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !stderrors.As(err, &errs) {
		return nil
	}

	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := validationMessages[e.Tag()]
		if msg == "" {
			msg = e.Error()
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
