package tripchat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/pkg/middleware"
)

type Handler struct {
	svc    Service
	store  *Store
	logger *zap.Logger
}

func NewHandler(svc Service, store *Store, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, store: store, logger: logger}
}

type messageRequest struct {
	SessionID string               `json:"session_id"`
	Message   string               `json:"message" binding:"required"`
	Location  *models.UserLocation `json:"user_location,omitempty"`
}

type pendingRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type messageResponse struct {
	SessionID string `json:"session_id"`
	*MessageResult
}

// HandleMessage is POST /api/v1/chat/message. Anonymous callers are served on
// a free-tier budget; authenticated callers get full intake.
func (h *Handler) HandleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	sess := h.store.GetOrCreate(req.SessionID)
	authenticated := middleware.IsAuthenticated(c)
	if authenticated {
		h.bindUser(c, sess)
	}

	result, err := h.svc.HandleMessage(c.Request.Context(), sess, req.Message, authenticated, req.Location)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{SessionID: sess.ID.String(), MessageResult: result})
}

// HandlePending is POST /api/v1/chat/pending: releases the message held
// behind the registration gate once the caller has signed in.
func (h *Handler) HandlePending(c *gin.Context) {
	var req pendingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	if !middleware.IsAuthenticated(c) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	sess, found := h.store.Get(req.SessionID)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	h.bindUser(c, sess)

	result, err := h.svc.SubmitPending(c.Request.Context(), sess, nil)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{SessionID: sess.ID.String(), MessageResult: result})
}

// HandleOpenConversation is GET /api/v1/conversations/:id. It replays the
// stored conversation into the caller's session and returns the transcript
// with the current itinerary view.
func (h *Handler) HandleOpenConversation(c *gin.Context) {
	conversationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}
	userID, err := uuid.Parse(middleware.GetUserIDFromContext(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}

	sess := h.store.GetOrCreate(c.Query("session_id"))
	if err := h.svc.LoadConversation(c.Request.Context(), sess, userID, conversationID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("Failed to load conversation",
			zap.String("conversation_id", conversationID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversation"})
		return
	}

	result, err := h.svc.SubmitPending(c.Request.Context(), sess, nil)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{SessionID: sess.ID.String(), MessageResult: result})
}

func (h *Handler) bindUser(c *gin.Context, sess *Session) {
	userID, err := uuid.Parse(middleware.GetUserIDFromContext(c))
	if err != nil {
		return
	}
	sess.mu.Lock()
	sess.UserID = userID
	sess.mu.Unlock()
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrGenerationInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": "a message is already being processed"})
	case errors.Is(err, models.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
	case errors.Is(err, models.ErrQuotaExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "usage quota exhausted"})
	case errors.Is(err, models.ErrGatewayUnavailable), errors.Is(err, models.ErrBadGatewayReply):
		c.JSON(http.StatusBadGateway, gin.H{"error": "assistant temporarily unavailable"})
	default:
		h.logger.Error("Chat message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
