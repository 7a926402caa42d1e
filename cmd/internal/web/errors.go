package web

import (
	"log/slog"
	"net/http"
)

// FieldError is one entry of a 400 response body.
type FieldError struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

// ErrorsBody is the 400 response body.
type ErrorsBody struct {
	ErrorsMessages []FieldError `json:"errorsMessages"`
}

// WriteFieldErrors answers 400 with one entry per failing field.
func WriteFieldErrors(w http.ResponseWriter, errs ...FieldError) {
	if errs == nil {
		errs = []FieldError{}
	}
	WriteJSON(w, http.StatusBadRequest, ErrorsBody{ErrorsMessages: errs})
}

// WriteField answers 400 for a single field.
func WriteField(w http.ResponseWriter, field, msg string) {
	WriteFieldErrors(w, FieldError{Message: msg, Field: field})
}

// Fail logs err under event and answers 500 without leaking it.
func Fail(w http.ResponseWriter, r *http.Request, log *slog.Logger, event string, err error) {
	if log != nil {
		log.ErrorContext(r.Context(), event, "method", r.Method, "path", r.URL.Path, "err", err)
	}
	WriteStatus(w, http.StatusInternalServerError)
}
