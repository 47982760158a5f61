// Package validation wraps a singleton go-playground validator with the
// custom rules used by offer ingestion and search requests.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// isoLayouts are the accepted offer date formats.
var isoLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

// FieldError is one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// RequestValidationError collects every failed rule of a struct.
type RequestValidationError struct {
	Errors []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve.Errors))
	for i, e := range ve.Errors {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// Fields maps field namespace to message, for form style responses.
func (ve *RequestValidationError) Fields() map[string]string {
	out := make(map[string]string, len(ve.Errors))
	for _, e := range ve.Errors {
		out[e.Field] = e.Message
	}
	return out
}

// GetValidator returns the shared validator instance.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
			return IsISODate(fl.Field().String())
		})
	})
	return validate
}

// IsISODate reports whether s is an ISO-8601 date or date-time.
func IsISODate(s string) bool {
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// ValidateStruct returns nil or a *RequestValidationError.
func ValidateStruct(s any) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestValidationError{Errors: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}
	out := &RequestValidationError{Errors: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Errors[i] = FieldError{
			Field:   fieldPath(fe),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

// fieldPath drops the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

var messages = map[string]string{
	"required": "%s is required",
	"isodate":  "%s must be an ISO-8601 date",
}

var messagesWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
	"gt":    "%s must be greater than %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translate(fe validator.FieldError) string {
	field := fieldPath(fe)
	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := messagesWithParam[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
