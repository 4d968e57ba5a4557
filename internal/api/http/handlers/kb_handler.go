package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// KnowledgeHandler manages knowledge-base endpoints.
type KnowledgeHandler struct {
	knowledge *service.KnowledgeService
}

// NewKnowledgeHandler constructs handler.
func NewKnowledgeHandler(knowledgeService *service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledgeService}
}

// CreateItem POST /kb/items.
func (h *KnowledgeHandler) CreateItem(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if actor.TenantID == nil {
		return apperrors.NewForbidden("account has no tenant")
	}
	var req dto.CreateKnowledgeItemRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	item, err := h.knowledge.AddItem(c.Context(), actor, *actor.TenantID, service.KnowledgeItemInput{
		ItemType: req.ItemType,
		Title:    req.Title,
		Content:  req.Content,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewKnowledgeItemResponse(item)})
}

// ListItems GET /kb/items.
func (h *KnowledgeHandler) ListItems(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if actor.TenantID == nil {
		return apperrors.NewForbidden("account has no tenant")
	}
	items, err := h.knowledge.ListItems(c.Context(), actor, *actor.TenantID)
	if err != nil {
		return err
	}
	resp := make([]dto.KnowledgeItemResponse, 0, len(items))
	for i := range items {
		resp = append(resp, dto.NewKnowledgeItemResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}
