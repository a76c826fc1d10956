package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/erazemk/rewear/internal/apperr"
	"github.com/erazemk/rewear/internal/logger"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type pageResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		// The status line is already sent; an encoding failure here can only
		// be a broken connection.
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError renders err as a JSON error. Errors without an application code
// are logged and reported as internal errors.
func writeError(ctx context.Context, log *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Wrap(apperr.CodeInternal, err, "unexpected error")
	}

	meta := apperr.MetadataFor(typed.Code())
	msg := meta.PublicMessage
	if meta.Expose && typed.Message() != "" {
		msg = typed.Message()
	}

	if log != nil && meta.HTTPStatus >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", err)
	}

	body := errorBody{Code: string(typed.Code()), Message: msg}
	if meta.Expose {
		body.Details = typed.Details()
	}
	jsonResponse(w, meta.HTTPStatus, errorResponse{Error: body})
}
