// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

// Package validation checks API request bodies and RPC payloads with
// go-playground/validator v10.
//
// Field names in failures are the json names, so they match what API clients
// send:
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    respondValidation(w, r, verr)
//	    return
//	}
//
// Two domain tags are registered: presence (online, away, busy, offline) and
// emoji (one trimmed emoji sequence of at most MaxEmojiRunes runes).
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/stellr/internal/models"
)

// MaxEmojiRunes bounds a reaction emoji. Multi-codepoint sequences (skin
// tones, flags, ZWJ families) fit comfortably.
const MaxEmojiRunes = 16

const codeValidation = "VALIDATION_ERROR"

// FieldError is one failed rule.
type FieldError struct {
	Field   string // json name
	Tag     string // rule, e.g. "max"
	Param   string // rule parameter, e.g. "5000"
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// RequestValidationError holds every failed rule of one struct.
type RequestValidationError struct {
	Fields []FieldError
}

func (ve *RequestValidationError) Error() string {
	if len(ve.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// APIError mirrors the API error envelope without importing the api package.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError renders the failures for the API. A single failure names its
// field directly; several are listed under "fields".
func (ve *RequestValidationError) ToAPIError() *APIError {
	switch len(ve.Fields) {
	case 0:
		return &APIError{Code: codeValidation, Message: "Validation failed"}
	case 1:
		f := ve.Fields[0]
		return &APIError{
			Code:    codeValidation,
			Message: f.Message,
			Details: map[string]interface{}{"field": f.Field, "tag": f.Tag},
		}
	}

	fields := make([]map[string]interface{}, len(ve.Fields))
	for i, f := range ve.Fields {
		fields[i] = map[string]interface{}{"field": f.Field, "tag": f.Tag, "message": f.Message}
	}
	return &APIError{
		Code:    codeValidation,
		Message: ve.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

var (
	shared     *validator.Validate
	sharedOnce sync.Once
)

// GetValidator returns the process-wide validator. It caches struct
// metadata and is safe for concurrent use.
func GetValidator() *validator.Validate {
	sharedOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(jsonName)
		// Registration fails only for an empty tag or nil func.
		_ = v.RegisterValidation("presence", func(fl validator.FieldLevel) bool {
			return models.PresenceStatus(fl.Field().String()).Valid()
		})
		_ = v.RegisterValidation("emoji", func(fl validator.FieldLevel) bool {
			return isEmoji(fl.Field().String())
		})
		shared = v
	})
	return shared
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func isEmoji(s string) bool {
	n := utf8.RuneCountInString(s)
	return n > 0 && n <= MaxEmojiRunes && strings.TrimSpace(s) == s
}

// ValidateStruct validates s and returns nil when every rule passes.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var fes validator.ValidationErrors
	if !errors.As(err, &fes) {
		// InvalidValidationError: s was not a struct.
		return &RequestValidationError{Fields: []FieldError{{Field: "body", Tag: "struct", Message: err.Error()}}}
	}

	out := &RequestValidationError{Fields: make([]FieldError, len(fes))}
	for i, fe := range fes {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: describe(fe),
		}
	}
	return out
}

// describe renders fe as a sentence about the field.
func describe(fe validator.FieldError) string {
	field, p := fe.Field(), fe.Param()
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	}

	switch fe.Tag() {
	case "required", "required_if":
		return field + " is required"
	case "url":
		return field + " must be a valid URL"
	case "uuid":
		return field + " must be a valid UUID"
	case "presence":
		return field + " must be one of: online, away, busy, offline"
	case "emoji":
		return field + " must be a single emoji"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(p, " ", ", "))
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", field, p, unit)
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", field, p, unit)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, p)
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, p)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, p)
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, p)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
