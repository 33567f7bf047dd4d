package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/poof/backend/internal/middleware"
	"github.com/poof/backend/internal/models"
	"github.com/poof/backend/internal/services"
)

type MessageHandler struct {
	messages *services.MessageService
}

func NewMessageHandler(messages *services.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	groupID := chi.URLParam(r, "groupId")

	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	msg, err := h.messages.Send(ctx, groupID, userID, &req)
	if err != nil {
		switch err {
		case services.ErrGroupNotFound:
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Group not found"))
		case services.ErrNotGroupMember:
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not a member of this group"))
		case services.ErrGroupExpired:
			writeJSON(w, http.StatusGone, models.NewErrorResponse("This group has already poofed"))
		default:
			log.Printf("[SendMessage] uid=%s group=%s error=%v", userID, groupID, err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to send message"))
		}
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(msg))
}

func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	groupID := chi.URLParam(r, "groupId")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	msgs, err := h.messages.List(ctx, groupID, userID, limit)
	if err != nil {
		switch err {
		case services.ErrGroupNotFound:
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Group not found"))
		case services.ErrNotGroupMember:
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not a member of this group"))
		default:
			log.Printf("[ListMessages] uid=%s group=%s error=%v", userID, groupID, err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to list messages"))
		}
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(msgs))
}

// ToggleReaction toggles the caller's emoji reaction on a message. A user
// ends up under at most one emoji per message.
func (h *MessageHandler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}
	groupID := chi.URLParam(r, "groupId")
	messageID := chi.URLParam(r, "messageId")

	var req models.ToggleReactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errors))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	reactions, err := h.messages.ToggleReaction(ctx, groupID, messageID, userID, req.Emoji)
	if err != nil {
		switch err {
		case services.ErrGroupNotFound:
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Group not found"))
		case services.ErrNotGroupMember:
			writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Not a member of this group"))
		case services.ErrMessageNotFound:
			writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Message not found"))
		default:
			log.Printf("[ToggleReaction] uid=%s group=%s message=%s error=%v", userID, groupID, messageID, err)
			writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to toggle reaction"))
		}
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(map[string]interface{}{"reactions": reactions}))
}
