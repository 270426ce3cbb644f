package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

type httpStatusError interface {
	HTTPStatus() int
}

type detailedError interface {
	Detail() string
}

// ErrorHandlerMiddleware turns handler errors into the JSON error envelope.
// Errors may carry their status via HTTPStatus() and extra diagnostics via
// Detail(); anything else is a 500.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

// WriteError renders err as an error response on ctx.
func WriteError(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	var statusErr httpStatusError
	switch {
	case errors.As(err, &statusErr):
		code = statusErr.HTTPStatus()
	case errors.As(err, &fiberErr):
		code = fiberErr.Code
	}

	res := ErrorResponse(code, err.Error())
	var detailErr detailedError
	if errors.As(err, &detailErr) {
		res.ErrorDetail = detailErr.Detail()
	}
	return ctx.Status(code).JSON(res)
}
