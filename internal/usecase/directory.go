package usecase

import (
	"context"
	"sync"

	"clubportal/internal/domain/entity"
	"clubportal/internal/domain/repository"
	"clubportal/pkg/logger"
)

// Directory resolves and caches user profiles for conversation labelling and
// recipient selection. A profile that fails to resolve is not negatively
// cached, so a later aggregation pass retries it; when a retry succeeds the
// cache change is broadcast so live aggregators re-run and pick up messages
// they previously had to drop.
type Directory struct {
	users repository.UserRepository

	mutex       sync.RWMutex
	cache       map[string]*entity.UserProfile
	subscribers map[chan struct{}]struct{}
}

func NewDirectory(users repository.UserRepository) *Directory {
	return &Directory{
		users:       users,
		cache:       make(map[string]*entity.UserProfile),
		subscribers: make(map[chan struct{}]struct{}),
	}
}

// Resolve returns the profile for id, fetching and caching it on first use.
// A failed resolution is reported as absence, never as an error.
func (d *Directory) Resolve(ctx context.Context, id string) (*entity.UserProfile, bool) {
	d.mutex.RLock()
	profile, ok := d.cache[id]
	d.mutex.RUnlock()
	if ok {
		return profile, true
	}

	profile, err := d.users.GetByID(ctx, id)
	if err != nil {
		logger.Debug("Profile %s did not resolve: %v", id, err)
		return nil, false
	}

	d.store(profile)
	return profile, true
}

// Candidates lists compose-recipient candidates, optionally filtered by
// role, and warms the cache with the results.
func (d *Directory) Candidates(ctx context.Context, role string) ([]*entity.UserProfile, error) {
	profiles, err := d.users.ListByRole(ctx, role, 0)
	if err != nil {
		return nil, err
	}

	for _, profile := range profiles {
		d.store(profile)
	}

	return profiles, nil
}

// Subscribe registers for cache-change notifications. The returned cancel
// func must be called on teardown.
func (d *Directory) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	d.mutex.Lock()
	d.subscribers[ch] = struct{}{}
	d.mutex.Unlock()

	cancel := func() {
		d.mutex.Lock()
		delete(d.subscribers, ch)
		d.mutex.Unlock()
	}
	return ch, cancel
}

func (d *Directory) store(profile *entity.UserProfile) {
	d.mutex.Lock()
	_, known := d.cache[profile.ID]
	d.cache[profile.ID] = profile

	var notify []chan struct{}
	if !known {
		for ch := range d.subscribers {
			notify = append(notify, ch)
		}
	}
	d.mutex.Unlock()

	// Coalescing send; a subscriber that already has a pending notification
	// does not need another.
	for _, ch := range notify {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
