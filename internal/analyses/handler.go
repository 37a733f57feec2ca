package analyses

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"wish-backend/internal/llm"
	"wish-backend/internal/safety"
	"wish-backend/internal/shared/server/middleware"
	"wish-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the analyses service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyses", h.createAnalysis)
	rg.GET("/analyses", h.listAnalyses)
	rg.GET("/analyses/:id", h.getAnalysis)
	rg.POST("/analyses/:id/unlock", h.unlockAnalysis)
}

type createAnalysisRequest struct {
	WishText string `json:"wishText"`
	Deity    string `json:"deity"`
	WishID   string `json:"wishId"`
}

func (h *Handler) createAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	analysis, err := h.Svc.Analyze(c.Request.Context(), AnalyzeInput{
		UserID:   userID,
		OpenID:   middleware.OpenIDFromContext(c),
		WishText: req.WishText,
		Deity:    req.Deity,
		WishID:   req.WishID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyWish):
			respond.Error(c, http.StatusBadRequest, "validation_error", "wish text is required and must be at most 500 characters", nil)
		case errors.Is(err, safety.ErrUnsafeContent):
			respond.Error(c, http.StatusUnprocessableEntity, "content_rejected", "wish text did not pass the content check", nil)
		case errors.Is(err, ErrRateLimited):
			respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many analyses this hour, try again later", nil)
		case errors.Is(err, ErrParse):
			respond.Error(c, http.StatusBadGateway, "llm_invalid_output", "the assistant returned an unusable answer", nil)
		default:
			respondLLMError(c, err)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, analysisResponse(analysis))
}

func (h *Handler) getAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")
	if analysisID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "analysis id is required", nil)
		return
	}

	analysis, err := h.Svc.Get(c.Request.Context(), analysisID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch analysis", nil)
		}
		return
	}

	respond.OK(c, analysisResponse(analysis))
}

func (h *Handler) listAnalyses(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

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

	analyses, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list analyses", nil)
		return
	}

	resp := make([]gin.H, 0, len(analyses))
	for _, a := range analyses {
		resp = append(resp, analysisResponse(a))
	}
	respond.OK(c, gin.H{"analyses": resp})
}

type unlockRequest struct {
	Token string `json:"token"`
}

func (h *Handler) unlockAnalysis(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	analysisID := c.Param("id")

	var req unlockRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unlock token is required", nil)
		return
	}

	result, err := h.Svc.Redeem(c.Request.Context(), analysisID, req.Token, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "analysis not found", nil)
		case errors.Is(err, ErrTokenInvalid):
			respond.Error(c, http.StatusForbidden, "invalid_token", "unlock token does not match", nil)
		case errors.Is(err, ErrTokenExpired):
			respond.Error(c, http.StatusGone, "token_expired", "unlock token expired, run a new analysis", nil)
		case errors.Is(err, ErrUnlockInProgress):
			respond.Error(c, http.StatusConflict, "unlock_in_progress", "unlock is being processed, retry shortly", nil)
		case errors.Is(err, ErrRateLimited):
			respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many unlock attempts this hour", nil)
		case errors.Is(err, ErrParse):
			respond.Error(c, http.StatusBadGateway, "llm_invalid_output", "the assistant returned an unusable answer", nil)
		default:
			respondLLMError(c, err)
		}
		return
	}

	respond.OK(c, gin.H{
		"analysisId": analysisID,
		"fullResult": result,
	})
}

// analysisResponse shapes the API payload. The unlock token travels in the
// body exactly once, at creation and on reads by the owner, but the gated
// result only appears after redemption.
func analysisResponse(a Analysis) gin.H {
	resp := gin.H{
		"id":        a.ID,
		"wishText":  a.WishText,
		"diagnosis": a.Diagnosis,
		"unlocked":  a.Unlocked(),
		"createdAt": a.CreatedAt,
	}
	if a.WishID != "" {
		resp["wishId"] = a.WishID
	}
	if a.Deity != "" {
		resp["deity"] = a.Deity
	}
	if !a.Unlocked() {
		resp["unlockToken"] = a.UnlockToken
		resp["unlockExpiresAt"] = a.UnlockExpiresAt
	}
	if a.Unlocked() && a.FullResult != nil {
		resp["fullResult"] = a.FullResult
	}
	return resp
}

// respondLLMError maps orchestrator failures onto upstream-flavored statuses.
func respondLLMError(c *gin.Context, err error) {
	var attemptErr *llm.AttemptError
	switch {
	case errors.Is(err, llm.ErrBudgetExhausted):
		respond.Error(c, http.StatusGatewayTimeout, "llm_timeout", "the assistant took too long to answer", nil)
	case errors.As(err, &attemptErr) && attemptErr.Kind == llm.FailureTimeout:
		respond.Error(c, http.StatusGatewayTimeout, "llm_timeout", "the assistant took too long to answer", nil)
	case errors.Is(err, llm.ErrNoProviders), errors.Is(err, llm.ErrDeadlineTooSmall):
		respond.Error(c, http.StatusBadGateway, "llm_unavailable", "no assistant is available right now", nil)
	default:
		var fallbackErr *llm.FallbackError
		if errors.As(err, &fallbackErr) {
			respond.Error(c, http.StatusBadGateway, "llm_unavailable", "all assistants failed, try again later", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "analysis failed", nil)
	}
}
