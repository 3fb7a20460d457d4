package rest

import (
	"github.com/AzielCF/az-social/automation/application"
	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/pkg/utils"
	"github.com/AzielCF/az-social/validations"
	"github.com/gofiber/fiber/v2"
)

type Automation struct {
	Service *application.AutomationService
}

func InitRestAutomation(app fiber.Router, service *application.AutomationService) Automation {
	rest := Automation{Service: service}

	app.Post("/accounts", rest.ConnectAccount)
	app.Get("/accounts/:id", rest.GetAccount)
	app.Delete("/accounts/:id", rest.DisconnectAccount)

	app.Get("/accounts/:id/autoreply/logs", rest.ListLogs)
	app.Get("/accounts/:id/autoreply/:surface", rest.GetAutoReplySetting)
	app.Put("/accounts/:id/autoreply/:surface", rest.SaveAutoReplySetting)
	app.Get("/accounts/:id/persona", rest.GetPersona)
	app.Put("/accounts/:id/persona", rest.SavePersona)

	app.Post("/posts", rest.SchedulePost)
	app.Get("/users/:user/actions", rest.ListActions)
	app.Get("/actions/:id", rest.GetAction)
	app.Post("/actions/:id/cancel", rest.CancelAction)
	app.Post("/actions/:id/retry", rest.RetryAction)
	app.Post("/actions/:id/publish-now", rest.PublishNow)

	return rest
}

func (h *Automation) ConnectAccount(c *fiber.Ctx) error {
	var req domain.ConnectAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "Invalid request body"})
	}
	utils.PanicIfNeeded(validations.ValidateConnectAccount(c.UserContext(), req))

	acc, err := h.Service.ConnectAccount(c.UserContext(), req)
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account connected",
		Results: acc,
	})
}

func (h *Automation) GetAccount(c *fiber.Ctx) error {
	acc, err := h.Service.GetAccount(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account fetched",
		Results: acc,
	})
}

func (h *Automation) DisconnectAccount(c *fiber.Ctx) error {
	utils.PanicIfNeeded(httpError(h.Service.DisconnectAccount(c.UserContext(), c.Params("id"))))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Account disconnected",
	})
}

func (h *Automation) SchedulePost(c *fiber.Ctx) error {
	var req domain.SchedulePostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "Invalid request body"})
	}
	utils.PanicIfNeeded(validations.ValidateSchedulePost(c.UserContext(), req))

	action, err := h.Service.SchedulePost(c.UserContext(), req)
	utils.PanicIfNeeded(httpError(err))

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Post scheduled",
		Results: action,
	})
}

func (h *Automation) ListActions(c *fiber.Ctx) error {
	actions, err := h.Service.ListByUser(c.UserContext(), c.Params("user"))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Actions fetched",
		Results: actions,
	})
}

func (h *Automation) GetAction(c *fiber.Ctx) error {
	action, err := h.Service.Get(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Action fetched",
		Results: action,
	})
}

func (h *Automation) CancelAction(c *fiber.Ctx) error {
	action, err := h.Service.Cancel(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Action cancelled",
		Results: action,
	})
}

func (h *Automation) RetryAction(c *fiber.Ctx) error {
	action, err := h.Service.Retry(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(httpError(err))

	return c.Status(fiber.StatusCreated).JSON(utils.ResponseData{
		Status:  201,
		Code:    "SUCCESS",
		Message: "Action retried",
		Results: action,
	})
}

func (h *Automation) PublishNow(c *fiber.Ctx) error {
	action, err := h.Service.PublishNow(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Action dispatched",
		Results: action,
	})
}

func (h *Automation) GetAutoReplySetting(c *fiber.Ctx) error {
	setting, err := h.Service.GetAutoReplySetting(c.UserContext(), c.Params("id"), domain.Surface(c.Params("surface")))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Auto-reply setting fetched",
		Results: setting,
	})
}

func (h *Automation) SaveAutoReplySetting(c *fiber.Ctx) error {
	var req domain.AutoReplySettingRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "Invalid request body"})
	}
	req.AccountID = c.Params("id")
	req.Surface = domain.Surface(c.Params("surface"))
	utils.PanicIfNeeded(validations.ValidateAutoReplySetting(c.UserContext(), req))

	setting, err := h.Service.SaveAutoReplySetting(c.UserContext(), req)
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Auto-reply setting saved",
		Results: setting,
	})
}

func (h *Automation) GetPersona(c *fiber.Ctx) error {
	persona, err := h.Service.GetPersona(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Persona fetched",
		Results: persona,
	})
}

func (h *Automation) SavePersona(c *fiber.Ctx) error {
	var req domain.PersonaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{Status: 400, Code: "BAD_REQUEST", Message: "Invalid request body"})
	}
	req.AccountID = c.Params("id")
	utils.PanicIfNeeded(validations.ValidatePersona(c.UserContext(), req))

	persona, err := h.Service.SavePersona(c.UserContext(), req)
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Persona saved",
		Results: persona,
	})
}

func (h *Automation) ListLogs(c *fiber.Ctx) error {
	logs, err := h.Service.ListLogs(c.UserContext(), c.Params("id"), c.QueryInt("limit", 0))
	utils.PanicIfNeeded(httpError(err))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Auto-reply log fetched",
		Results: logs,
	})
}
