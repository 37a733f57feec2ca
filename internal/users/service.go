package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// EnsureForOpenID returns the user for a platform openid, creating one on
// first login so history ownership stays stable across sessions.
func (s *Service) EnsureForOpenID(ctx context.Context, openID, nickname, avatarURL string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	openID = strings.TrimSpace(openID)
	if openID == "" {
		return User{}, errors.New("openid is required")
	}
	return s.Repo.UpsertByOpenID(ctx, User{
		ID:        uuid.NewString(),
		OpenID:    openID,
		Nickname:  strings.TrimSpace(nickname),
		AvatarURL: strings.TrimSpace(avatarURL),
	})
}

func (s *Service) GetByID(ctx context.Context, userID string) (User, error) {
	if s == nil || s.Repo == nil {
		return User{}, errors.New("users service not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return User{}, errors.New("user id is required")
	}
	return s.Repo.GetByID(ctx, userID)
}
