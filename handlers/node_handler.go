package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"phoenixd-dashboard-server/models"
	"phoenixd-dashboard-server/services"
)

type NodeHandler struct {
	db *services.DBService
}

func NewNodeHandler(db *services.DBService) *NodeHandler {
	return &NodeHandler{db: db}
}

// CreateNodeConnection godoc
// @Summary Register a node connection
// @Tags nodes
// @Accept json
// @Produce json
// @Param node body models.CreateNodeConnectionRequest true "Node connection"
// @Success 200 {object} models.NodeConnection
// @Failure 400 {object} map[string]string
// @Router /nodes [post]
func (h *NodeHandler) CreateNodeConnection(c *fiber.Ctx) error {
	var req models.CreateNodeConnectionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Label == "" || req.URL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "label and url are required",
		})
	}

	node, err := h.db.CreateNodeConnection(c.Context(), &req)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(node)
}

// ListNodeConnections godoc
// @Summary List node connections
// @Tags nodes
// @Produce json
// @Success 200 {array} models.NodeConnection
// @Router /nodes [get]
func (h *NodeHandler) ListNodeConnections(c *fiber.Ctx) error {
	nodes, err := h.db.ListNodeConnections(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if nodes == nil {
		nodes = []models.NodeConnection{}
	}

	return c.JSON(nodes)
}

// ActivateNodeConnection godoc
// @Summary Activate a node connection
// @Description Makes this connection the active backend; deactivates all others
// @Tags nodes
// @Param id path int true "Node connection ID"
// @Success 204
// @Router /nodes/{id}/activate [post]
func (h *NodeHandler) ActivateNodeConnection(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid node connection ID",
		})
	}

	if err := h.db.ActivateNodeConnection(c.Context(), id); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteNodeConnection godoc
// @Summary Delete a node connection
// @Tags nodes
// @Param id path int true "Node connection ID"
// @Success 204
// @Router /nodes/{id} [delete]
func (h *NodeHandler) DeleteNodeConnection(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid node connection ID",
		})
	}

	if err := h.db.DeleteNodeConnection(c.Context(), id); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.SendStatus(fiber.StatusNoContent)
}
