package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies decoded by DecodeJSON.
const MaxBodyBytes = 1 << 20

var validate = validator.New()

// WriteJSON writes v as JSON with the given HTTP status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// WriteError writes a JSON error response with the given status and message.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// FieldError describes one validation problem in a request payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DecodeJSON reads a JSON body into v and runs struct validation on it.
// Validation problems are returned as []FieldError inside a *RequestError.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &RequestError{Message: "invalid request body"}
	}

	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			problems := make([]FieldError, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, FieldError{
					Field:   fe.Field(),
					Message: fmt.Sprintf("failed %q validation", fe.Tag()),
				})
			}
			return &RequestError{Message: "validation failed", Details: problems}
		}
		return &RequestError{Message: err.Error()}
	}
	return nil
}

// RequestError is returned by DecodeJSON for client mistakes.
type RequestError struct {
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *RequestError) Error() string { return e.Message }

// WriteRequestError renders err as 400 (malformed) or 422 (validation).
func WriteRequestError(w http.ResponseWriter, err error) {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(reqErr.Details) > 0 {
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "validation_failed",
			"message": reqErr.Message,
			"details": reqErr.Details,
		})
		return
	}
	WriteError(w, http.StatusBadRequest, reqErr.Message)
}
