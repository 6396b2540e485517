package http

import (
	"errors"
	"net/http"

	"codex-gateway/internal/domain"
)

func errorResponse(message, errType, code string) ErrorResponse {
	body := ErrorBody{Message: message, Type: errType}
	if code != "" {
		body.Code = &code
	}
	return ErrorResponse{Error: body}
}

// toHTTPError maps an error from the application layer to a status and body.
func toHTTPError(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, domain.ErrModelNotFound):
		return http.StatusNotFound, errorResponse(err.Error(), ErrorTypeInvalidRequest, "model_not_found")
	case errors.Is(err, domain.ErrSandboxForbidden):
		return http.StatusBadRequest, errorResponse(err.Error(), ErrorTypeInvalidRequest, "sandbox_forbidden")
	case errors.Is(err, domain.ErrNonLocalProvider):
		return http.StatusBadRequest, errorResponse(err.Error(), ErrorTypeInvalidRequest, "non_local_provider")
	case errors.Is(err, domain.ErrInvalidRequest):
		return http.StatusBadRequest, errorResponse(err.Error(), ErrorTypeInvalidRequest, "")
	}

	var execErr *domain.ExecutionError
	if errors.As(err, &execErr) {
		status := execErr.Status()
		return status, errorResponse(execErr.Error(), errorType(status), string(execErr.Kind))
	}
	return http.StatusInternalServerError, errorResponse(err.Error(), ErrorTypeServer, "")
}

func errorType(status int) string {
	if status >= http.StatusInternalServerError {
		return ErrorTypeServer
	}
	return ErrorTypeUpstream
}

// eventError rebuilds the execution error carried by an Errored event.
func eventError(ev domain.StreamEvent) error {
	return &domain.ExecutionError{
		Kind:       ev.ErrorKind,
		Message:    ev.Message,
		HTTPStatus: ev.HTTPStatus,
	}
}
