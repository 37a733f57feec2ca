package wishes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wish-backend/internal/safety"
	"wish-backend/internal/shared/server/middleware"
	"wish-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the wishes service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches wish routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/wishes", h.createWish)
	rg.GET("/wishes", h.listWishes)
	rg.GET("/wishes/:id", h.getWish)
	rg.PUT("/wishes/:id", h.updateWish)
	rg.DELETE("/wishes/:id", h.deleteWish)
}

type wishRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Deity   string `json:"deity"`
	Status  string `json:"status"`
}

func (h *Handler) createWish(c *gin.Context) {
	var req wishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	wish, err := h.Svc.Create(c.Request.Context(), CreateInput{
		UserID:  middleware.UserIDFromContext(c),
		OpenID:  middleware.OpenIDFromContext(c),
		Title:   req.Title,
		Content: req.Content,
		Deity:   req.Deity,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "wish content is required and must be at most 500 characters", nil)
		case errors.Is(err, safety.ErrUnsafeContent):
			respond.Error(c, http.StatusUnprocessableEntity, "content_rejected", "wish content did not pass the content check", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create wish", nil)
		}
		return
	}
	respond.JSON(c, http.StatusCreated, wish)
}

func (h *Handler) getWish(c *gin.Context) {
	wish, err := h.Svc.Get(c.Request.Context(), c.Param("id"), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "wish not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch wish", nil)
		return
	}
	respond.OK(c, wish)
}

func (h *Handler) listWishes(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}

	wishes, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list wishes", nil)
		return
	}
	respond.OK(c, gin.H{"wishes": wishes})
}

func (h *Handler) updateWish(c *gin.Context) {
	var req wishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	wish, err := h.Svc.Update(c.Request.Context(), c.Param("id"), middleware.UserIDFromContext(c), UpdateInput{
		OpenID:  middleware.OpenIDFromContext(c),
		Title:   req.Title,
		Content: req.Content,
		Deity:   req.Deity,
		Status:  req.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "wish not found", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid wish fields", nil)
		case errors.Is(err, safety.ErrUnsafeContent):
			respond.Error(c, http.StatusUnprocessableEntity, "content_rejected", "wish content did not pass the content check", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to update wish", nil)
		}
		return
	}
	respond.OK(c, wish)
}

func (h *Handler) deleteWish(c *gin.Context) {
	err := h.Svc.Delete(c.Request.Context(), c.Param("id"), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "wish not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to delete wish", nil)
		return
	}
	c.Status(http.StatusNoContent)
}
