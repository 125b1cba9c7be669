package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"phoenixd-dashboard-server/middleware"
	"phoenixd-dashboard-server/models"
	"phoenixd-dashboard-server/services"
)

type RecurringHandler struct {
	service *services.RecurringService
}

func NewRecurringHandler(svc *services.RecurringService) *RecurringHandler {
	return &RecurringHandler{service: svc}
}

// CreateRecurringPayment godoc
// @Summary Create a recurring payment
// @Description Register a standing payment order to a contact address
// @Tags recurring
// @Accept json
// @Produce json
// @Param recurring body models.CreateRecurringPaymentRequest true "Recurring payment to create"
// @Success 200 {object} models.RecurringPayment
// @Failure 400 {object} map[string]string
// @Router /recurring [post]
func (h *RecurringHandler) CreateRecurringPayment(c *fiber.Ctx) error {
	var req models.CreateRecurringPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rp, err := h.service.CreateRecurringPayment(c.Context(), &req)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(rp)
}

// ListRecurringPayments godoc
// @Summary List recurring payments
// @Tags recurring
// @Produce json
// @Success 200 {array} models.RecurringPayment
// @Router /recurring [get]
func (h *RecurringHandler) ListRecurringPayments(c *fiber.Ctx) error {
	payments, err := h.service.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if payments == nil {
		payments = []models.RecurringPayment{}
	}

	return c.JSON(payments)
}

// GetRecurringPayment godoc
// @Summary Get a recurring payment
// @Tags recurring
// @Produce json
// @Param id path int true "Recurring payment ID"
// @Success 200 {object} models.RecurringPayment
// @Failure 404 {object} map[string]string
// @Router /recurring/{id} [get]
func (h *RecurringHandler) GetRecurringPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	rp, err := h.service.Get(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if rp == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Recurring payment not found",
		})
	}

	return c.JSON(rp)
}

// UpdateRecurringPayment godoc
// @Summary Update a recurring payment
// @Description Edit amount, cadence, target address, or message
// @Tags recurring
// @Accept json
// @Produce json
// @Param id path int true "Recurring payment ID"
// @Param recurring body models.UpdateRecurringPaymentRequest true "Fields to update"
// @Success 200 {object} models.RecurringPayment
// @Router /recurring/{id} [put]
func (h *RecurringHandler) UpdateRecurringPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	var req models.UpdateRecurringPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	rp, err := h.service.UpdateRecurringPayment(c.Context(), id, &req)
	if err != nil {
		return recurringError(c, err)
	}

	return c.JSON(rp)
}

// CancelRecurringPayment godoc
// @Summary Cancel a recurring payment
// @Description Cancelled payments keep their execution history but never run again
// @Tags recurring
// @Param id path int true "Recurring payment ID"
// @Success 204
// @Router /recurring/{id} [delete]
func (h *RecurringHandler) CancelRecurringPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	if err := h.service.SetStatus(c.Context(), id, models.RecurringCancelled); err != nil {
		return recurringError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// PauseRecurringPayment godoc
// @Summary Pause a recurring payment
// @Tags recurring
// @Param id path int true "Recurring payment ID"
// @Success 204
// @Router /recurring/{id}/pause [post]
func (h *RecurringHandler) PauseRecurringPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	if err := h.service.SetStatus(c.Context(), id, models.RecurringPaused); err != nil {
		return recurringError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ResumeRecurringPayment godoc
// @Summary Resume a paused recurring payment
// @Tags recurring
// @Param id path int true "Recurring payment ID"
// @Success 204
// @Router /recurring/{id}/resume [post]
func (h *RecurringHandler) ResumeRecurringPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	if err := h.service.SetStatus(c.Context(), id, models.RecurringActive); err != nil {
		return recurringError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ExecuteRecurringPayment godoc
// @Summary Execute a recurring payment now
// @Description Run one payment attempt immediately, outside the schedule
// @Tags recurring
// @Produce json
// @Param id path int true "Recurring payment ID"
// @Success 200 {object} models.PaymentExecution
// @Failure 409 {object} map[string]string
// @Router /recurring/{id}/execute [post]
func (h *RecurringHandler) ExecuteRecurringPayment(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	exec, err := h.service.ExecuteByID(middleware.GetXRayContext(c), id)
	if err != nil {
		if errors.Is(err, services.ErrExecutionInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return recurringError(c, err)
	}

	return c.JSON(exec)
}

// ListExecutions godoc
// @Summary List execution history for a recurring payment
// @Tags recurring
// @Produce json
// @Param id path int true "Recurring payment ID"
// @Param limit query int false "Max records to return"
// @Success 200 {array} models.PaymentExecution
// @Router /recurring/{id}/executions [get]
func (h *RecurringHandler) ListExecutions(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	executions, err := h.service.ListExecutions(c.Context(), id, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if executions == nil {
		executions = []models.PaymentExecution{}
	}

	return c.JSON(executions)
}

// ExportExecutions godoc
// @Summary Export execution history to storage
// @Description Write a JSON snapshot of the execution history and return its storage key
// @Tags recurring
// @Produce json
// @Param id path int true "Recurring payment ID"
// @Success 200 {object} map[string]string
// @Router /recurring/{id}/executions/export [post]
func (h *RecurringHandler) ExportExecutions(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recurring payment ID",
		})
	}

	key, err := h.service.ExportExecutions(c.Context(), id)
	if err != nil {
		return recurringError(c, err)
	}

	return c.JSON(fiber.Map{"key": key})
}

func recurringError(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrRecurringNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}
