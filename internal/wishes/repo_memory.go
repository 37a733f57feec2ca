package wishes

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores wishes in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byID   map[string]Wish
	byUser map[string][]string
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byID:   make(map[string]Wish),
		byUser: make(map[string][]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, wish Wish) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[wish.ID] = wish
	r.byUser[wish.UserID] = append(r.byUser[wish.UserID], wish.ID)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, wishID string) (Wish, error) {
	if err := ctx.Err(); err != nil {
		return Wish{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	wish, ok := r.byID[wishID]
	if !ok {
		return Wish{}, ErrNotFound
	}
	return wish, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Wish, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	r.mu.RLock()
	ids := r.byUser[userID]
	wishes := make([]Wish, 0, len(ids))
	for _, id := range ids {
		if w, ok := r.byID[id]; ok {
			wishes = append(wishes, w)
		}
	}
	r.mu.RUnlock()

	if len(wishes) == 0 || offset >= len(wishes) {
		return []Wish{}, nil
	}
	sort.Slice(wishes, func(i, j int) bool {
		return wishes[i].CreatedAt.After(wishes[j].CreatedAt)
	})

	end := len(wishes)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return wishes[offset:end], nil
}

func (r *MemoryRepo) Update(ctx context.Context, wish Wish) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[wish.ID]; !ok {
		return ErrNotFound
	}
	r.byID[wish.ID] = wish
	return nil
}

func (r *MemoryRepo) Delete(ctx context.Context, wishID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	wish, ok := r.byID[wishID]
	if !ok {
		return ErrNotFound
	}
	delete(r.byID, wishID)
	ids := r.byUser[wish.UserID]
	for i, id := range ids {
		if id == wishID {
			r.byUser[wish.UserID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
