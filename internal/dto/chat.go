package dto

import "tripwise_backend/internal/models"

// ChatMessage mirrors one history entry as the client stores it.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=user assistant"`
	Content string `json:"content" validate:"required,max=8000"`
}

// ChatRequest carries the full conversation history. The server is
// stateless about message text; only stage and draft survive between turns.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages" validate:"max=200,dive"`
}

// ChatResponse is the payload of one successful turn. Destination and
// source mirror the draft at top level; the clarification reply for an
// empty history carries no ui tag at all.
type ChatResponse struct {
	Resp        string                    `json:"resp"`
	UI          models.Stage              `json:"ui,omitempty"`
	Component   models.Component          `json:"component,omitempty"`
	Destination string                    `json:"destination,omitempty"`
	Source      string                    `json:"source,omitempty"`
	Draft       models.TripDraft          `json:"draft"`
	Automation  *models.AutomationSummary `json:"automation,omitempty"`
	Remaining   int                       `json:"remaining"`
	Unlimited   bool                      `json:"unlimited"`
}
