package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// ChatHandler exposes the customer chat and agent assist endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	assist *service.AssistService
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService, assistService *service.AssistService) *ChatHandler {
	return &ChatHandler{chat: chatService, assist: assistService}
}

// CustomerMessage POST /chat/customer.
func (h *ChatHandler) CustomerMessage(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	reply, err := h.chat.HandleCustomerMessage(c.Context(), actor, req.SessionID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ChatResponse{
		Response:  reply.Response,
		SessionID: reply.SessionID,
		TicketID:  reply.TicketID,
		Handoff:   reply.Handoff,
	}})
}

// SessionHistory GET /chat/sessions/:session_id.
func (h *ChatHandler) SessionHistory(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	messages, err := h.chat.SessionHistory(c.Context(), actor, c.Params("session_id"))
	if err != nil {
		return err
	}
	items := make([]dto.ChatMessageResponse, 0, len(messages))
	for i := range messages {
		items = append(items, dto.NewChatMessageResponse(&messages[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Assist POST /chat/assist.
func (h *ChatHandler) Assist(c *fiber.Ctx) error {
	actor, ok := auth.UserFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssistRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	var (
		suggestion *service.AssistSuggestion
		err        error
	)
	if req.TicketID != "" {
		suggestion, err = h.assist.Suggest(c.Context(), actor, req.TicketID, req.Query)
	} else {
		suggestion, err = h.assist.SuggestFromContext(c.Context(), actor, req.ConversationContext, req.Query)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SuggestionResponse{
		Suggestion:   suggestion.Suggestion,
		SnippetCount: suggestion.SnippetCount,
	}})
}
