package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

const defaultMaxBody = 64 * 1024

var (
	// ErrEmptyBody is returned when the request carries no payload.
	ErrEmptyBody = errors.New("httpx: request body is empty")
	// ErrBodyTooLarge is returned when the payload exceeds the handler limit.
	ErrBodyTooLarge = errors.New("httpx: request body too large")

	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared request validator. JSON tag names are used in error reports.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ReadLimitedBody reads at most limit bytes from the request body.
func ReadLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, ErrEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBody
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrBodyTooLarge
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyBody
	}
	return data, nil
}

// DecodeJSON reads, decodes and validates the request body into dst. The returned Error is ready to
// be written when err is non-nil.
func DecodeJSON(r *http.Request, limit int64, dst any) (Error, error) {
	data, err := ReadLimitedBody(r, limit)
	switch {
	case errors.Is(err, ErrBodyTooLarge):
		return NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge), err
	case errors.Is(err, ErrEmptyBody):
		return NewError("invalid_request", "request body is required", http.StatusBadRequest), err
	case err != nil:
		return NewError("invalid_request", "unable to read request body", http.StatusBadRequest), err
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return NewError("invalid_json", fmt.Sprintf("invalid JSON payload: %v", err), http.StatusBadRequest), err
	}
	if err := Validator().Struct(dst); err != nil {
		return ValidationError(err), err
	}
	return Error{}, nil
}

// ValidationError converts validator failures into a 400 envelope listing field messages.
func ValidationError(err error) Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewError("invalid_request", err.Error(), http.StatusBadRequest)
	}
	fields := make(map[string]string, len(verrs))
	var first string
	for _, fe := range verrs {
		msg := fieldMessage(fe)
		fields[fe.Field()] = msg
		if first == "" {
			first = msg
		}
	}
	return NewError("validation_failed", first, http.StatusBadRequest).WithDetails(map[string]any{"fields": fields})
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "excluded_with", "excluded_with_all":
		return fmt.Sprintf("%s cannot be combined with %s", fe.Field(), strings.ToLower(fe.Param()))
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
