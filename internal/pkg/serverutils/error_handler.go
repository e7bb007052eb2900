package serverutils

import (
	"errors"

	"paperchat-be/internal/service"
	"paperchat-be/pkg/rag/ragerr"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts service errors into HTTP responses so
// controllers can just return them.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		if service.IsAccessDenied(err) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(err.Error()))
		}

		if errors.Is(err, ragerr.ErrTurnInFlight) {
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(err.Error()))
		}

		if errors.Is(err, ragerr.ErrRetrievalUnavailable) {
			return ctx.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse(err.Error()))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(err.Error()))
	}
}
