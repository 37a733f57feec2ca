package analyses

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrTokenInvalid     = errors.New("unlock token invalid")
	ErrTokenExpired     = errors.New("unlock token expired")
	ErrUnlockInProgress = errors.New("unlock already in progress")
	ErrRateLimited      = errors.New("rate limited")
	ErrParse            = errors.New("llm output parse")
	ErrEmptyWish        = errors.New("wish text is required")
)

