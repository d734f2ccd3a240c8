package conversations

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/FACorreiaa/travesia/internal/app/domain/itinerary"
	"github.com/FACorreiaa/travesia/internal/app/models"
	"github.com/FACorreiaa/travesia/internal/pkg/middleware"
)

type Handler struct {
	repo      Repository
	presenter *itinerary.Service
	logger    *zap.Logger
}

func NewHandler(repo Repository, presenter *itinerary.Service, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, presenter: presenter, logger: logger}
}

// HandleList is GET /api/v1/conversations with optional search, limit and
// offset query parameters.
func (h *Handler) HandleList(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	limit := parseIntQuery(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	convs, err := h.repo.ListConversations(c.Request.Context(), userID, c.Query("search"), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list conversations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list conversations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

type createConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

// HandleCreate is POST /api/v1/conversations.
func (h *Handler) HandleCreate(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	conv, err := h.repo.CreateConversation(c.Request.Context(), userID, req.Title)
	if err != nil {
		h.logger.Error("Failed to create conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create conversation"})
		return
	}
	c.JSON(http.StatusCreated, conv)
}

// HandleDelete is DELETE /api/v1/conversations/:id. Messages and the trip go
// with it via cascade.
func (h *Handler) HandleDelete(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return
	}

	if err := h.repo.DeleteConversation(c.Request.Context(), userID, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
			return
		}
		h.logger.Error("Failed to delete conversation", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete conversation"})
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleGetTrip is GET /api/v1/trips/:id: the raw stored trip.
func (h *Handler) HandleGetTrip(c *gin.Context) {
	trip, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, trip)
}

// HandleTripView is GET /api/v1/trips/:id/view: the tabbed presentation
// projection with categorized options, user-added items and cost totals.
func (h *Handler) HandleTripView(c *gin.Context) {
	trip, ok := h.ownedTrip(c)
	if !ok {
		return
	}

	items, err := h.repo.ListTripItems(c.Request.Context(), trip.ID)
	if err != nil {
		h.logger.Error("Failed to list trip items",
			zap.String("trip_id", trip.ID.String()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trip"})
		return
	}

	view := h.presenter.Project(&trip.Document, &trip.Request, items)
	c.JSON(http.StatusOK, view)
}

type addItemRequest struct {
	Type  string   `json:"type" binding:"required,oneof=flight hotel car activity"`
	Day   int      `json:"day"`
	Time  string   `json:"time"`
	Name  string   `json:"name" binding:"required"`
	Price *float64 `json:"price,omitempty"`
}

// HandleAddItem is POST /api/v1/trips/:id/items. Re-adding the same
// (type, day, time) slot overwrites the previous entry.
func (h *Handler) HandleAddItem(c *gin.Context) {
	trip, ok := h.ownedTrip(c)
	if !ok {
		return
	}
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "type and name are required"})
		return
	}

	item, err := h.repo.AddTripItem(c.Request.Context(), models.AddedItem{
		TripID: trip.ID,
		Type:   req.Type,
		Day:    req.Day,
		Time:   req.Time,
		Name:   req.Name,
		Price:  req.Price,
	})
	if err != nil {
		h.logger.Error("Failed to add trip item", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add item"})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) ownedTrip(c *gin.Context) (*models.Trip, bool) {
	userID, ok := h.requireUser(c)
	if !ok {
		return nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trip id"})
		return nil, false
	}

	trip, err := h.repo.GetTrip(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
			return nil, false
		}
		h.logger.Error("Failed to load trip", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trip"})
		return nil, false
	}
	if trip.UserID != userID {
		c.JSON(http.StatusNotFound, gin.H{"error": "trip not found"})
		return nil, false
	}
	return trip, true
}

func (h *Handler) requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, err := uuid.Parse(middleware.GetUserIDFromContext(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return uuid.Nil, false
	}
	return userID, true
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
