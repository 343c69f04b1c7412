package http

import (
	"errors"
	"net/http"

	"github.com/garyjia/bid-reconciler/internal/application/pipeline"
	"github.com/garyjia/bid-reconciler/internal/application/service"
	domainwf "github.com/garyjia/bid-reconciler/internal/domain/workflow"
	"github.com/garyjia/bid-reconciler/internal/reconcile"
)

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, reconcile.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, pipeline.ErrStageOrder),
		errors.Is(err, pipeline.ErrRunClosed),
		errors.Is(err, pipeline.ErrAlreadyCommitted),
		errors.Is(err, domainwf.ErrTerminalState):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrBlockingValidation),
		errors.Is(err, pipeline.ErrWarningsUnacknowledged),
		errors.Is(err, pipeline.ErrEmptySheet),
		errors.Is(err, pipeline.ErrDuplicateRow),
		errors.Is(err, pipeline.ErrNothingToImport),
		errors.Is(err, service.ErrInvalidBoq):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrStageTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
