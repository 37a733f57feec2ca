package orders

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wish-backend/internal/shared/server/middleware"
	"wish-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the orders service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches order routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/orders", h.createOrder)
	rg.GET("/orders", h.listOrders)
}

type createOrderRequest struct {
	Product string `json:"product"`
	WishID  string `json:"wishId"`
}

func (h *Handler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Product == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "product code is required", nil)
		return
	}

	order, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), req.Product, req.WishID)
	if err != nil {
		if errors.Is(err, ErrUnknownProduct) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unknown product code", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create order", nil)
		return
	}
	respond.JSON(c, http.StatusCreated, order)
}

func (h *Handler) listOrders(c *gin.Context) {
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

	orders, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list orders", nil)
		return
	}
	respond.OK(c, gin.H{"orders": orders})
}
