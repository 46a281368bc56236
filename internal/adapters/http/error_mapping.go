package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrInvalidState),
		domain.IsKind(err, domain.ErrAlreadyResolved),
		domain.IsKind(err, domain.ErrAlreadyApproved),
		domain.IsKind(err, domain.ErrConflict),
		domain.IsKind(err, domain.ErrImmutableSuggestion):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrUnresolvedEntities):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeError renders err with its kind. Unclassified errors are logged and
// reported without internal detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	kind := domain.KindName(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: message, Kind: kind})
}
