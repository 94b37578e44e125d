package middleware

import (
	"errors"

	"carbid-backend/internal/domain"
	"carbid-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. Domain errors map to their
// status codes; anything else is a 500 with the detail kept out of the body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	details := map[string]interface{}{}

	switch {
	case domain.IsNotFound(err):
		code = fiber.StatusNotFound
		message = err.Error()
	case domain.IsInvalidState(err):
		code = fiber.StatusBadRequest
		message = err.Error()
	case domain.IsInvalidAmount(err):
		code = fiber.StatusBadRequest
		message = err.Error()
		var e *domain.InvalidAmountError
		if errors.As(err, &e) {
			details["minimum"] = e.Minimum.StringFixed(2)
		}
	case domain.IsConflict(err):
		code = fiber.StatusConflict
		message = err.Error()
	default:
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
			message = e.Message
		} else {
			log.Error().Err(err).Str("path", c.Path()).Msg("Unhandled error")
		}
	}

	return response.Error(c, message, code, details)
}
