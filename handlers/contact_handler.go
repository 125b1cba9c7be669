package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"phoenixd-dashboard-server/models"
	"phoenixd-dashboard-server/services"
)

type ContactHandler struct {
	db *services.DBService
}

func NewContactHandler(db *services.DBService) *ContactHandler {
	return &ContactHandler{db: db}
}

// CreateContact godoc
// @Summary Create a contact
// @Description Save a payment recipient with one or more payment addresses
// @Tags contacts
// @Accept json
// @Produce json
// @Param contact body models.CreateContactRequest true "Contact to create"
// @Success 200 {object} models.Contact
// @Failure 400 {object} map[string]string
// @Router /contacts [post]
func (h *ContactHandler) CreateContact(c *fiber.Ctx) error {
	var req models.CreateContactRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	// Validation
	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}
	for _, addr := range req.Addresses {
		switch addr.Type {
		case models.AddressTypeLightning, models.AddressTypeOffer, models.AddressTypeInvoice:
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "unknown address type: " + addr.Type,
			})
		}
		if addr.Address == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "address is required",
			})
		}
	}

	contact, err := h.db.CreateContact(c.Context(), &req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(contact)
}

// ListContacts godoc
// @Summary List all contacts
// @Tags contacts
// @Produce json
// @Success 200 {array} models.Contact
// @Router /contacts [get]
func (h *ContactHandler) ListContacts(c *fiber.Ctx) error {
	contacts, err := h.db.ListContacts(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if contacts == nil {
		contacts = []models.Contact{}
	}

	return c.JSON(contacts)
}

// GetContact godoc
// @Summary Get a contact
// @Tags contacts
// @Produce json
// @Param id path int true "Contact ID"
// @Success 200 {object} models.Contact
// @Failure 404 {object} map[string]string
// @Router /contacts/{id} [get]
func (h *ContactHandler) GetContact(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid contact ID",
		})
	}

	contact, err := h.db.GetContact(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if contact == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Contact not found",
		})
	}

	return c.JSON(contact)
}

// DeleteContact godoc
// @Summary Delete a contact
// @Description Removes the contact, its addresses, and any schedules targeting it
// @Tags contacts
// @Param id path int true "Contact ID"
// @Success 204
// @Router /contacts/{id} [delete]
func (h *ContactHandler) DeleteContact(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid contact ID",
		})
	}

	if err := h.db.DeleteContact(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
