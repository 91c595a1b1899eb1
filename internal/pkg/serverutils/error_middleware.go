package serverutils

import (
	"kb-ingest-be/internal/pkg/faults"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware maps fault kinds onto HTTP status codes so
// controllers can return errors untouched.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		if fiberErr, ok := err.(*fiber.Error); ok {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		return ctx.Status(statusFor(err)).JSON(ErrorResponse(err.Error()))
	}
}

func statusFor(err error) int {
	switch faults.KindOf(err) {
	case faults.KindNotFound:
		return fiber.StatusNotFound
	case faults.KindConflict:
		return fiber.StatusConflict
	case faults.KindConfiguration:
		return fiber.StatusBadRequest
	case faults.KindTimeout:
		return fiber.StatusGatewayTimeout
	case faults.KindTransient:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}
