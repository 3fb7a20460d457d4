package middleware

import (
	"errors"
	"fmt"

	pkgError "github.com/AzielCF/az-social/pkg/error"
	"github.com/AzielCF/az-social/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// Recovery turns panics raised by utils.PanicIfNeeded into JSON responses.
// GenericError panics keep their own status; anything else is a 500.
func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			res := utils.ResponseData{
				Status:  fiber.StatusInternalServerError,
				Code:    "INTERNAL_SERVER_ERROR",
				Message: fmt.Sprintf("%v", rec),
			}

			var generic pkgError.GenericError
			if err, ok := rec.(error); ok && errors.As(err, &generic) {
				res.Status = generic.StatusCode()
				res.Code = generic.ErrCode()
				res.Message = generic.Error()
			}

			entry := logrus.WithFields(logrus.Fields{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"status": res.Status,
			})
			if res.Status >= fiber.StatusInternalServerError {
				entry.Errorf("[HTTP] Panic recovered: %v", rec)
			} else {
				entry.Debugf("[HTTP] Request rejected: %s", res.Message)
			}

			_ = ctx.Status(res.Status).JSON(res)
		}()

		return ctx.Next()
	}
}
