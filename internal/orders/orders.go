package orders

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order statuses. Payment confirmation arrives out of band, so orders are
// created pending and stay that way until the provider callback lands.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrUnknownProduct = errors.New("unknown product code")
)

// priceTable maps product codes to prices in fen.
var priceTable = map[string]int64{
	"blessing_basic":   600,
	"blessing_premium": 1800,
	"lamp_monthly":     3000,
}

// Order is one purchase of a blessing product.
type Order struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	WishID    string    `json:"wishId,omitempty"`
	Product   string    `json:"product"`
	AmountFen int64     `json:"amountFen"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repo defines persistence operations for orders.
type Repo interface {
	Create(ctx context.Context, order Order) error
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
}

// Service contains business logic for orders.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Create opens a pending order for a known product.
func (s *Service) Create(ctx context.Context, userID, product, wishID string) (Order, error) {
	if strings.TrimSpace(userID) == "" {
		return Order{}, errors.New("userID is required")
	}
	amount, ok := priceTable[product]
	if !ok {
		return Order{}, ErrUnknownProduct
	}

	now := time.Now().UTC()
	order := Order{
		ID:        uuid.NewString(),
		UserID:    userID,
		WishID:    strings.TrimSpace(wishID),
		Product:   product,
		AmountFen: amount,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, order); err != nil {
		return Order{}, err
	}
	return order, nil
}

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errors.New("userID is required")
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}
