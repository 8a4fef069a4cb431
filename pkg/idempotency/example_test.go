package idempotency

import (
	"context"
	"fmt"
	"time"
)

type exampleStore struct {
	seen map[string]bool
}

func (s *exampleStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (s *exampleStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *exampleStore) IdempotencyKey(scope, id string) string {
	return "nursery:idempotency:" + scope + ":" + id
}

func (s *exampleStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.seen, key)
	}
	return nil
}

func ExampleGuard_CheckAndMark() {
	ctx := context.Background()
	guard, _ := NewGuard(&exampleStore{seen: map[string]bool{}}, 24*time.Hour, "webhook:shopify")

	for i := 0; i < 2; i++ {
		already, _ := guard.CheckAndMark(ctx, "delivery-1")
		if already {
			fmt.Println("duplicate delivery")
			continue
		}
		fmt.Println("processing delivery")
	}
	// Output:
	// processing delivery
	// duplicate delivery
}
