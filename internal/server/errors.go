package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/leapstack-labs/leapscale/internal/propagate"
)

// Error codes returned in the error envelope.
const (
	codeBadRequest      = "bad_request"
	codeInvalidGraph    = "invalid_graph"
	codeMissingColumn   = "missing_column"
	codePayloadTooLarge = "payload_too_large"
	codeCanceled        = "canceled"
	codeInternal        = "internal"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// writeErr maps err to a status code and writes the envelope.
func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, propagate.ErrInvalidGraph):
		return http.StatusUnprocessableEntity, codeInvalidGraph
	case errors.Is(err, propagate.ErrMissingColumn):
		return http.StatusUnprocessableEntity, codeMissingColumn
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, codePayloadTooLarge
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, codeCanceled
	}
	return http.StatusInternalServerError, codeInternal
}

// writeDecodeErr is writeErr for request bodies: anything that is not a
// typed table error is the client's fault.
func writeDecodeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		status, code = http.StatusBadRequest, codeBadRequest
	}
	writeError(w, status, code, err.Error())
}
