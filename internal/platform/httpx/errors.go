package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/noah-isme/dealer-iam/internal/shared"
)

// kinds maps error sentinels to HTTP statuses and their default client messages.
var kinds = []struct {
	kind    error
	status  int
	message string
}{
	{shared.ErrBadRequest, http.StatusBadRequest, "The request is malformed or incomplete."},
	{shared.ErrUnauthorized, http.StatusUnauthorized, "Authentication is required or has failed."},
	{shared.ErrForbidden, http.StatusForbidden, "You are not allowed to perform this action."},
	{shared.ErrNotFound, http.StatusNotFound, "The requested resource was not found."},
	{shared.ErrConflict, http.StatusConflict, "The request conflicts with the current state of the resource."},
	{shared.ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests, please retry later."},
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.kind) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// RespondError maps domain errors to the uniform envelope. Curated messages of
// *shared.Error are passed through; anything else is logged and replaced by a
// generic per-kind message.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := StatusOf(err)
	message := "An unexpected error occurred."
	for _, k := range kinds {
		if k.status == status {
			message = k.message
			break
		}
	}

	var resource any
	var public *shared.Error
	var fields FieldErrors
	switch {
	case errors.As(err, &fields):
		message = "Request validation failed."
		resource = fields
	case errors.As(err, &public):
		message = public.Message
	}

	if logger != nil {
		attrs := []any{
			slog.Int("status", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", attrs...)
		} else {
			logger.Warn("request rejected", attrs...)
		}
	}
	Respond(w, r, status, message, resource)
}
