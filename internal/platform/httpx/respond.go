// Package httpx provides the JSON envelope and request helpers shared by all handlers.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/dealer-iam/internal/shared"
)

const maxBodyBytes = 1 << 20

// Envelope is the uniform response body.
type Envelope struct {
	Status    int    `json:"status"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Path      string `json:"path"`
	Resource  any    `json:"resource"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Respond wraps resource in a success envelope.
func Respond(w http.ResponseWriter, r *http.Request, status int, message string, resource any) {
	if resource == nil {
		resource = map[string]any{}
	}
	JSON(w, status, Envelope{
		Status:    status,
		Success:   status < http.StatusBadRequest,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Path:      r.URL.Path,
		Resource:  resource,
	})
}

// FieldErrors reports per-field validation failures.
type FieldErrors map[string]string

func (f FieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, msg := range f {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// Unwrap classifies validation failures as bad requests.
func (f FieldErrors) Unwrap() error {
	return shared.ErrBadRequest
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.BadRequest("request body is required")
		}
		return shared.BadRequest("request body is not valid JSON")
	}
	return nil
}

// DecodeAndValidate decodes the body into target and runs struct validation.
func DecodeAndValidate(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	return Validate(v, target)
}

// Validate runs struct validation and converts failures into FieldErrors.
func Validate(v *validator.Validate, target any) error {
	err := v.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.BadRequest("request body is not valid")
	}
	fields := make(FieldErrors, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		return fmt.Sprintf("must have at least %s characters or items", fe.Param())
	case "max":
		return fmt.Sprintf("must have at most %s characters or items", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid URL"
	default:
		return "is not valid"
	}
}
