// Geomarket - Geospatial Market Data Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geomarket

package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// CodeValidation is the API error code for rejected request bodies.
const CodeValidation = "VALIDATION_ERROR"

// FieldError is one failed constraint, named by the field's JSON key.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Value   any    `json:"value,omitempty"`
	Message string `json:"message"`
}

// Errors is every constraint a request failed, in field order.
type Errors []FieldError

func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Message is the client-facing summary: the single message, or
// "field: message" pairs when several fields failed.
func (e Errors) Message() string {
	switch len(e) {
	case 0:
		return "Validation failed"
	case 1:
		return e[0].Message
	}
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(parts, "; ")
}

// Details is the APIError details payload. A single failure is flattened
// into field, tag and value.
func (e Errors) Details() map[string]any {
	switch len(e) {
	case 0:
		return nil
	case 1:
		return map[string]any{"field": e[0].Field, "tag": e[0].Tag, "value": e[0].Value}
	}
	return map[string]any{"fields": []FieldError(e)}
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// customTags are registered on the shared validator.
var customTags = map[string]func(string) bool{
	"ticker":  IsTicker,
	"usstate": IsStateCode,
	"safesearch": func(s string) bool {
		_, err := CheckSearchText(s)
		return err == nil
	},
	"ymd": func(s string) bool {
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	},
}

// GetValidator returns the shared validator. Besides the built-in tags it
// knows ticker, usstate, safesearch and ymd.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonFieldName)
		for tag, ok := range customTags {
			if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return ok(fl.Field().String())
			}); err != nil {
				panic(fmt.Sprintf("validation: register %s: %v", tag, err))
			}
		}
		validate = v
	})
	return validate
}

// jsonFieldName reports the JSON key so messages match the request body.
func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

// ValidateStruct returns nil when s passes, otherwise one FieldError per
// failed constraint.
func ValidateStruct(s any) Errors {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError: s was not a struct.
		return Errors{{Field: "body", Tag: "struct", Message: err.Error()}}
	}

	out := make(Errors, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Value:   fe.Value(),
			Message: message(fe),
		}
	}
	return out
}

var messages = map[string]func(field, param string, kind reflect.Kind) string{
	"required":   fixed("%s is required"),
	"latitude":   fixed("%s must be a valid latitude (-90 to 90)"),
	"longitude":  fixed("%s must be a valid longitude (-180 to 180)"),
	"ticker":     fixed("%s must be 1-10 alphanumeric characters"),
	"usstate":    fixed("%s must be a two-letter state code"),
	"safesearch": fixed("%s contains invalid characters or SQL patterns"),
	"ymd":        fixed("%s must be a date in YYYY-MM-DD format"),
	"oneof":      withParam("%s must be one of: %s"),
	"gte":        withParam("%s must be greater than or equal to %s"),
	"lte":        withParam("%s must be less than or equal to %s"),
	"gt":         withParam("%s must be greater than %s"),
	"lt":         withParam("%s must be less than %s"),
	"gtefield":   withParam("%s must not be before %s"),
	"min":        bound("at least"),
	"max":        bound("at most"),
}

func fixed(format string) func(string, string, reflect.Kind) string {
	return func(field, _ string, _ reflect.Kind) string { return fmt.Sprintf(format, field) }
}

func withParam(format string) func(string, string, reflect.Kind) string {
	return func(field, param string, _ reflect.Kind) string { return fmt.Sprintf(format, field, param) }
}

// bound words min and max by what is being measured.
func bound(rel string) func(string, string, reflect.Kind) string {
	return func(field, param string, kind reflect.Kind) string {
		switch kind {
		case reflect.String:
			return fmt.Sprintf("%s must be %s %s characters", field, rel, param)
		case reflect.Slice, reflect.Array:
			return fmt.Sprintf("%s must contain %s %s items", field, rel, param)
		default:
			return fmt.Sprintf("%s must be %s %s", field, rel, param)
		}
	}
}

func message(fe validator.FieldError) string {
	if m, ok := messages[fe.Tag()]; ok {
		return m(fe.Field(), fe.Param(), fe.Kind())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
