package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripwise_backend/internal/dto"
	"tripwise_backend/internal/llm"
	"tripwise_backend/internal/middleware"
	"tripwise_backend/internal/services"
)

type ChatHandler struct {
	*BaseHandler
	flowService services.FlowService
}

func NewChatHandler(base *BaseHandler, flowService services.FlowService) *ChatHandler {
	return &ChatHandler{
		BaseHandler: base,
		flowService: flowService,
	}
}

func (h *ChatHandler) RegisterRoutes(r *gin.RouterGroup) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.POST("", h.Chat)
		chat.DELETE("", h.ResetChat)
	}
}

// Chat runs one guided-planning turn against the submitted history.
func (h *ChatHandler) Chat(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	var req dto.ChatRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	history := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		history = append(history, llm.Message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	result, err := h.flowService.Turn(c.Request.Context(), h.GetDB(c), userID, history)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ChatResponse{
		Resp:        result.Resp,
		UI:          result.Stage,
		Component:   result.Component,
		Destination: result.Draft.Destination,
		Source:      result.Draft.Source,
		Draft:       result.Draft,
		Automation:  result.Automation,
		Remaining:   result.Remaining,
		Unlimited:   result.Unlimited,
	})
}

// ResetChat abandons the guided session and starts over from welcome.
func (h *ChatHandler) ResetChat(c *gin.Context) {
	userID, ok := h.GetAndAuthorizeUserID(c)
	if !ok {
		return
	}

	if err := h.flowService.Reset(c.Request.Context(), h.GetDB(c), userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Conversation reset"})
}
