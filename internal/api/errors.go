package api

import (
	stderrors "errors"

	"github.com/gofiber/fiber/v2"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/logging"
)

var kindStatus = map[errors.Kind]int{
	errors.KindValidation:        fiber.StatusUnprocessableEntity,
	errors.KindConflict:          fiber.StatusConflict,
	errors.KindResourceExhausted: fiber.StatusServiceUnavailable,
	errors.KindDaemonConnection:  fiber.StatusBadGateway,
	errors.KindNotFound:          fiber.StatusNotFound,
}

func statusFor(err error) int {
	if status, ok := kindStatus[errors.KindOf(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders errors as JSON. Validation failures list every
// field under "errors"; everything else carries a kind, an optional code
// and a message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if stderrors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"error": fiber.Map{"message": fe.Message},
		})
	}

	var verr *errors.ValidationError
	if stderrors.As(err, &verr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"errors": verr.Fields})
	}

	status := statusFor(err)
	body := fiber.Map{
		"kind":    errors.KindOf(err),
		"message": err.Error(),
	}
	var perr *errors.PanelError
	if stderrors.As(err, &perr) && perr.Code != "" {
		body["code"] = perr.Code
	}
	if status == fiber.StatusInternalServerError {
		logging.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
		body["message"] = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"error": body})
}
