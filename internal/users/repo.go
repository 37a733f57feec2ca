package users

import "context"

var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "user not found" }

type Repo interface {
	// UpsertByOpenID creates or refreshes the user keyed by platform openid
	// and returns the stored row, so repeat logins keep a stable user ID.
	UpsertByOpenID(ctx context.Context, user User) (User, error)
	GetByID(ctx context.Context, userID string) (User, error)
	GetByOpenID(ctx context.Context, openID string) (User, error)
}
