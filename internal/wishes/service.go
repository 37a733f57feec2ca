package wishes

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"wish-backend/internal/safety"
	"wish-backend/internal/shared/ownership"
)

const maxContentRunes = 500

var ErrInvalidInput = errors.New("invalid wish input")

// Service contains business logic for wish CRUD.
type Service struct {
	Repo   Repo
	Safety safety.Checker
}

// NewService constructs a Service.
func NewService(repo Repo, checker safety.Checker) *Service {
	return &Service{Repo: repo, Safety: checker}
}

// CreateInput carries one wish creation.
type CreateInput struct {
	UserID  string
	OpenID  string
	Title   string
	Content string
	Deity   string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (Wish, error) {
	content := strings.TrimSpace(input.Content)
	if input.UserID == "" || content == "" {
		return Wish{}, ErrInvalidInput
	}
	if len([]rune(content)) > maxContentRunes {
		return Wish{}, ErrInvalidInput
	}
	if s.Safety != nil {
		if err := s.Safety.Check(ctx, input.OpenID, content); err != nil {
			return Wish{}, err
		}
	}

	now := time.Now().UTC()
	wish := Wish{
		ID:        uuid.NewString(),
		UserID:    input.UserID,
		Title:     strings.TrimSpace(input.Title),
		Content:   content,
		Deity:     strings.TrimSpace(input.Deity),
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, wish); err != nil {
		return Wish{}, err
	}
	return wish, nil
}

func (s *Service) Get(ctx context.Context, wishID, requesterID string) (Wish, error) {
	wish, err := s.Repo.GetByID(ctx, wishID)
	if err != nil {
		return Wish{}, err
	}
	if err := ownership.Require(wish.UserID, requesterID); err != nil {
		return Wish{}, ErrNotFound
	}
	return wish, nil
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Wish, error) {
	if userID == "" {
		return nil, ErrInvalidInput
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateInput carries mutable wish fields; empty fields keep their value,
// except Status which must be one of the known states when set.
type UpdateInput struct {
	OpenID  string
	Title   string
	Content string
	Deity   string
	Status  string
}

func (s *Service) Update(ctx context.Context, wishID, requesterID string, input UpdateInput) (Wish, error) {
	wish, err := s.Get(ctx, wishID, requesterID)
	if err != nil {
		return Wish{}, err
	}

	if title := strings.TrimSpace(input.Title); title != "" {
		wish.Title = title
	}
	if content := strings.TrimSpace(input.Content); content != "" && content != wish.Content {
		if len([]rune(content)) > maxContentRunes {
			return Wish{}, ErrInvalidInput
		}
		if s.Safety != nil {
			if err := s.Safety.Check(ctx, input.OpenID, content); err != nil {
				return Wish{}, err
			}
		}
		wish.Content = content
	}
	if deity := strings.TrimSpace(input.Deity); deity != "" {
		wish.Deity = deity
	}
	if status := strings.TrimSpace(input.Status); status != "" {
		switch status {
		case StatusActive, StatusFulfilled, StatusArchived:
			wish.Status = status
		default:
			return Wish{}, ErrInvalidInput
		}
	}
	wish.UpdatedAt = time.Now().UTC()

	if err := s.Repo.Update(ctx, wish); err != nil {
		return Wish{}, err
	}
	return wish, nil
}

func (s *Service) Delete(ctx context.Context, wishID, requesterID string) error {
	if _, err := s.Get(ctx, wishID, requesterID); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, wishID)
}
