package wishes

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "wish not found" }

type Repo interface {
	Create(ctx context.Context, wish Wish) error
	GetByID(ctx context.Context, wishID string) (Wish, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Wish, error)
	Update(ctx context.Context, wish Wish) error
	Delete(ctx context.Context, wishID string) error
}
