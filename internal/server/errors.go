package server

import (
	"net/http"

	apperrors "github.com/chatrelay/chatrelay/internal/errors"
)

// HandleError writes the JSON error envelope for any failed request.
// Handlers and middleware funnel through here so every error carries
// the same shape and correlation ID.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
