package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	sharedauth "wish-backend/internal/shared/auth"
	"wish-backend/internal/shared/server/respond"
	"wish-backend/internal/shared/telemetry"
	"wish-backend/internal/users"
	"wish-backend/internal/wechat"
)

// WeChatService handles the mini-program login exchange: a wx.login code in,
// a session JWT out.
type WeChatService struct {
	Platform *wechat.Client
	Users    *users.Service
}

// NewWeChatService builds a WeChatService.
func NewWeChatService(platform *wechat.Client, userSvc *users.Service) *WeChatService {
	return &WeChatService{Platform: platform, Users: userSvc}
}

// RegisterRoutes attaches WeChat auth routes.
func (s *WeChatService) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/wechat/login", s.login)
}

type loginRequest struct {
	Code      string `json:"code"`
	Nickname  string `json:"nickname"`
	AvatarURL string `json:"avatarUrl"`
}

func (s *WeChatService) login(c *gin.Context) {
	if s.Platform == nil {
		respond.Error(c, http.StatusInternalServerError, "auth_not_configured", "WeChat auth not configured", nil)
		return
	}

	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Code == "" {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "login code is required", nil)
		return
	}

	ctx := c.Request.Context()
	session, err := s.Platform.Code2Session(ctx, req.Code)
	if err != nil {
		if errors.Is(err, wechat.ErrInvalidCode) {
			respond.Error(c, http.StatusBadRequest, "invalid_request", "login code invalid or already used", nil)
			return
		}
		respond.Error(c, http.StatusBadGateway, "auth_failed", "failed to verify login code", nil)
		return
	}

	user, err := s.Users.EnsureForOpenID(ctx, session.OpenID, req.Nickname, req.AvatarURL)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to persist user", nil)
		return
	}

	jwt, err := sharedauth.SignJWT(sharedauth.Claims{
		Sub:    user.ID,
		OpenID: user.OpenID,
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}

	telemetry.Info("auth.login", map[string]any{"user_id": user.ID})
	respond.OK(c, gin.H{
		"token": jwt,
		"user": gin.H{
			"id":        user.ID,
			"nickname":  user.Nickname,
			"avatarUrl": user.AvatarURL,
		},
	})
}
