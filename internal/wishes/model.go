package wishes

import "time"

// Wish statuses.
const (
	StatusActive    = "active"
	StatusFulfilled = "fulfilled"
	StatusArchived  = "archived"
)

// Wish is one user-authored wish, optionally tied to a chosen deity.
type Wish struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Deity     string    `json:"deity,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
