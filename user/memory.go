package user

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository is an in-process Repository used by tests and the
// loadtest tool. It enforces the same uniqueness rules as the SQL store.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*User
	now    func() time.Time
}

// NewMemoryRepository returns an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID: make(map[int64]*User),
		now:  time.Now,
	}
}

func (r *MemoryRepository) FindByID(_ context.Context, id int64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u.Clone(), nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (*User, error) {
	return r.findBy(func(u *User) bool { return email != "" && u.Email == email })
}

func (r *MemoryRepository) FindByGoogleID(_ context.Context, googleID string) (*User, error) {
	return r.findBy(func(u *User) bool { return googleID != "" && u.GoogleID == googleID })
}

func (r *MemoryRepository) FindByFacebookID(_ context.Context, facebookID string) (*User, error) {
	return r.findBy(func(u *User) bool { return facebookID != "" && u.FacebookID == facebookID })
}

func (r *MemoryRepository) Create(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkUniqueLocked(u, 0); err != nil {
		return err
	}
	r.nextID++
	now := r.now().UTC()
	u.ID = r.nextID
	u.CreatedAt = now
	u.UpdatedAt = now
	r.byID[u.ID] = u.Clone()
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; !ok {
		return ErrNotFound
	}
	if err := r.checkUniqueLocked(u, u.ID); err != nil {
		return err
	}
	u.UpdatedAt = r.now().UTC()
	r.byID[u.ID] = u.Clone()
	return nil
}

// Len returns the number of stored users.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *MemoryRepository) findBy(match func(*User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) checkUniqueLocked(u *User, self int64) error {
	for id, existing := range r.byID {
		if id == self {
			continue
		}
		if u.Email != "" && existing.Email == u.Email {
			return ErrEmailTaken
		}
		if u.GoogleID != "" && existing.GoogleID == u.GoogleID {
			return ErrProviderIDTaken
		}
		if u.FacebookID != "" && existing.FacebookID == u.FacebookID {
			return ErrProviderIDTaken
		}
	}
	return nil
}
