package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/corretorconnect/match-engine/pkg/auth"
	"github.com/corretorconnect/match-engine/pkg/services"
)

// SendMessageRequest for POST /api/matches/{id}/messages
type SendMessageRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// MessageHandler serves match chats and direct chats.
type MessageHandler struct {
	messaging services.MessagingService
	logger    *zap.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(messaging services.MessagingService, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messaging: messaging,
		logger:    logger,
	}
}

// RegisterRoutes registers the message handler's routes on the given mux.
func (h *MessageHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/matches/{id}/messages", authMiddleware.RequireAuth(scope(h.Send)))
	mux.HandleFunc("POST /api/matches/{id}/open-chat", authMiddleware.RequireAuth(scope(h.OpenChat)))
	mux.HandleFunc("POST /api/agents/{id}/chat", authMiddleware.RequireAuth(scope(h.StartDirectChat)))
}

// Send handles POST /api/matches/{id}/messages
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	matchID, ok := ParseMatchID(w, r, h.logger)
	if !ok {
		return
	}

	var req SendMessageRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "text is required", h.logger)
		return
	}

	msg, err := h.messaging.SendMessage(r.Context(), matchID, agentID, text)
	if err != nil {
		writeServiceError(w, err, "send message", h.logger,
			zap.String("match_id", matchID.String()),
			zap.String("agent_id", agentID.String()))
		return
	}

	writeData(w, http.StatusCreated, msg, h.logger)
}

// OpenChat handles POST /api/matches/{id}/open-chat
func (h *MessageHandler) OpenChat(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	matchID, ok := ParseMatchID(w, r, h.logger)
	if !ok {
		return
	}

	view, err := h.messaging.OpenChat(r.Context(), matchID, agentID)
	if err != nil {
		writeServiceError(w, err, "open chat", h.logger,
			zap.String("match_id", matchID.String()),
			zap.String("agent_id", agentID.String()))
		return
	}

	writeData(w, http.StatusOK, view, h.logger)
}

// StartDirectChat handles POST /api/agents/{id}/chat
func (h *MessageHandler) StartDirectChat(w http.ResponseWriter, r *http.Request) {
	agentID, ok := callerID(w, r, h.logger)
	if !ok {
		return
	}
	targetID, ok := ParseAgentID(w, r, h.logger)
	if !ok {
		return
	}

	chat, err := h.messaging.StartDirectChat(r.Context(), agentID, targetID)
	if err != nil {
		writeServiceError(w, err, "start direct chat", h.logger,
			zap.String("agent_id", agentID.String()),
			zap.String("target_id", targetID.String()))
		return
	}

	writeData(w, http.StatusOK, chat, h.logger)
}
