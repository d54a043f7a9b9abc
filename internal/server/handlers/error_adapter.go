package handlers

import (
	"net/http"

	apperrors "github.com/chatrelay/chatrelay/internal/errors"
)

// ErrorResponder writes an error envelope for a failed request.
type ErrorResponder func(w http.ResponseWriter, r *http.Request, err error)

var defaultResponder ErrorResponder = apperrors.RespondWithError

var httpErrorResponder = defaultResponder

// SetHTTPErrorResponder lets the server package route handler errors
// through its centralized envelope writer. A nil responder restores
// the default.
func SetHTTPErrorResponder(responder ErrorResponder) {
	if responder == nil {
		httpErrorResponder = defaultResponder
		return
	}
	httpErrorResponder = responder
}

// ResetHTTPErrorResponder restores the default responder for tests.
func ResetHTTPErrorResponder() {
	httpErrorResponder = defaultResponder
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
