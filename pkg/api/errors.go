package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/open-teleop/motion-controller/pkg/fault"
)

// StatusFor maps a classified failure to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	switch fault.KindOf(err) {
	case fault.KindInvalidRequest:
		return http.StatusBadRequest
	case fault.KindPrecondition:
		return http.StatusServiceUnavailable
	case fault.KindTimeout:
		return http.StatusGatewayTimeout
	case fault.KindTransport:
		return http.StatusBadGateway
	case fault.KindBusy:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// NewErrorBody describes err for an API client.
func NewErrorBody(err error) ErrorBody {
	kind := fault.KindOf(err)
	return ErrorBody{
		Error:     err.Error(),
		Kind:      kind.String(),
		Retryable: fault.IsRetryable(err),
	}
}

// WriteError sends err as a JSON ErrorBody with the matching status.
func WriteError(c *fiber.Ctx, err error) error {
	return c.Status(StatusFor(err)).JSON(NewErrorBody(err))
}

// ErrorHandler is the fiber error handler used by the server. Handlers that
// return an error instead of writing a response end up here.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return WriteError(c, err)
}
