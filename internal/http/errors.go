package http

import (
	"errors"
	"net/http"

	"atlas/internal/auth"
	"atlas/internal/core"
	applog "atlas/internal/log"
	"atlas/internal/services"
	"atlas/internal/storage"
)

// writeError maps service errors onto the API error taxonomy. Validation
// messages and backend messages reach the client verbatim.
func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	var validation *core.ValidationError
	switch {
	case errors.As(err, &validation):
		// Prefer the most specific message, e.g. the odometer regression text.
		UnprocessableEntityError(validation.Field, validationMessage(err, validation)).Write(w)
	case errors.Is(err, auth.ErrInvalidCredentials):
		ErrorResponse(http.StatusUnauthorized, "Email ou senha inválidos.").Write(w)
	case errors.Is(err, auth.ErrUnauthenticated):
		UnauthorizedError().Write(w)
	case errors.Is(err, storage.ErrNotFound):
		NotFoundError("Registro não encontrado.").Write(w)
	case errors.Is(err, services.ErrCategoryInUse), errors.Is(err, storage.ErrForeignKey), errors.Is(err, storage.ErrConflict):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.FieldOperation, operation,
			applog.FieldError, err)
		InternalServerError(err.Error()).Write(w)
	}
}

func validationMessage(err error, v *core.ValidationError) string {
	var regression *core.OdometerRegressionError
	if errors.As(err, &regression) {
		return regression.Error()
	}
	return v.Message
}
