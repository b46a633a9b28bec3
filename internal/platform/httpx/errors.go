package httpx

import (
	"errors"
	"net/http"

	"github.com/stitchline-erp/stitchline-erp/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
//
// Connectivity failures against the catalog partition map to 503 so clients
// can retry instead of treating the request as rejected input.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrCatalogUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Catalog Unavailable", err.Error())
	case errors.Is(err, shared.ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, shared.ErrUnitInvalid), errors.Is(err, shared.ErrInvalidID), errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
