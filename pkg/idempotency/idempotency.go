package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sudhir1041/nursery-orders/pkg/redis"
)

// Guard marks ids as seen within a scope using Redis SETNX with a TTL.
// Keys follow the `nursery:idempotency:<scope>:<id>` pattern.
type Guard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewGuard builds a guard for scope. A zero ttl keeps marks forever.
func NewGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*Guard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &Guard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark returns true if id was already marked and otherwise marks it.
func (g *Guard) CheckAndMark(ctx context.Context, id string) (bool, error) {
	key, err := g.key(id)
	if err != nil {
		return false, err
	}
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete clears the mark so a failed attempt can be retried.
func (g *Guard) Delete(ctx context.Context, id string) error {
	key, err := g.key(id)
	if err != nil {
		return err
	}
	return g.store.Del(ctx, key)
}

// Scope returns the namespace the guard marks ids in.
func (g *Guard) Scope() string {
	return g.scope
}

func (g *Guard) key(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("id is required")
	}
	return g.store.IdempotencyKey(g.scope, id), nil
}
