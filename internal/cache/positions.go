// Package cache implements the local position shadow: a best-effort copy of
// each user's positions kept in a key-value store and consulted only when the
// backend cannot answer. It is a cache, never a source of truth. A fresh server
// response always replaces what is stored, and entries for resolved or
// cancelled markets are evicted.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zoomiesmarket/zoomies/internal/domain"
)

// DefaultPositionsKey is the single store key holding every user's positions.
const DefaultPositionsKey = "zoomies_user_positions"

// lockTTL bounds how long a cross-process read-modify-write may hold the key.
const lockTTL = 5 * time.Second

// PositionCache stores {userID: []Position} under one key of a KVStore.
// Read-modify-write cycles are serialized in-process; when a LockManager is
// supplied they are also serialized across processes sharing the store.
type PositionCache struct {
	store domain.KVStore
	locks domain.LockManager
	key   string
	mu    sync.Mutex
}

// NewPositionCache creates a PositionCache. locks may be nil.
func NewPositionCache(store domain.KVStore, locks domain.LockManager, key string) *PositionCache {
	if key == "" {
		key = DefaultPositionsKey
	}
	return &PositionCache{store: store, locks: locks, key: key}
}

// Positions returns the cached positions of userID. A missing key is not an
// error.
func (c *PositionCache) Positions(ctx context.Context, userID string) ([]domain.Position, error) {
	all, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Position, len(all[userID]))
	copy(out, all[userID])
	return out, nil
}

// HasPosition reports whether userID holds a cached position on marketID.
func (c *PositionCache) HasPosition(ctx context.Context, userID, marketID string) (bool, error) {
	positions, err := c.Positions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.MarketID == marketID {
			return true, nil
		}
	}
	return false, nil
}

// Append records an optimistic position. A user holds at most one position
// per market, so an existing entry for the same market is replaced.
func (c *PositionCache) Append(ctx context.Context, pos domain.Position) error {
	return c.update(ctx, func(all map[string][]domain.Position) {
		list := all[pos.UserID][:0:0]
		for _, p := range all[pos.UserID] {
			if p.MarketID != pos.MarketID {
				list = append(list, p)
			}
		}
		all[pos.UserID] = append(list, pos)
	})
}

// Replace overwrites userID's positions with the server's answer.
func (c *PositionCache) Replace(ctx context.Context, userID string, positions []domain.Position) error {
	return c.update(ctx, func(all map[string][]domain.Position) {
		if len(positions) == 0 {
			delete(all, userID)
			return
		}
		cp := make([]domain.Position, len(positions))
		copy(cp, positions)
		all[userID] = cp
	})
}

// EvictMarket drops every user's position on marketID. It is called once a
// market resolves or is cancelled.
func (c *PositionCache) EvictMarket(ctx context.Context, marketID string) error {
	return c.update(ctx, func(all map[string][]domain.Position) {
		for user, list := range all {
			kept := list[:0:0]
			for _, p := range list {
				if p.MarketID != marketID {
					kept = append(kept, p)
				}
			}
			if len(kept) == 0 {
				delete(all, user)
			} else {
				all[user] = kept
			}
		}
	})
}

func (c *PositionCache) update(ctx context.Context, fn func(map[string][]domain.Position)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.locks != nil {
		unlock, err := c.locks.Acquire(ctx, c.key, lockTTL)
		if err != nil {
			return fmt.Errorf("cache: lock positions: %w", err)
		}
		defer unlock()
	}

	all, err := c.load(ctx)
	if err != nil {
		return err
	}
	fn(all)

	data, err := json.Marshal(all)
	if err != nil {
		return fmt.Errorf("cache: marshal positions: %w", err)
	}
	if err := c.store.Set(ctx, c.key, data); err != nil {
		return fmt.Errorf("cache: store positions: %w", err)
	}
	return nil
}

func (c *PositionCache) load(ctx context.Context) (map[string][]domain.Position, error) {
	data, err := c.store.Get(ctx, c.key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return make(map[string][]domain.Position), nil
		}
		return nil, fmt.Errorf("cache: load positions: %w", err)
	}

	all := make(map[string][]domain.Position)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		// A corrupt shadow is discarded rather than blocking the UI.
		return make(map[string][]domain.Position), nil
	}
	return all, nil
}
