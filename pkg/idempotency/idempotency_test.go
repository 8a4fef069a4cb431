package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "nursery:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestNewGuardValidation(t *testing.T) {
	if _, err := NewGuard(nil, time.Hour, "webhook:shopify"); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewGuard(&fakeStore{}, -time.Second, "webhook:shopify"); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
	if _, err := NewGuard(&fakeStore{}, time.Hour, "  "); err == nil {
		t.Fatalf("expected error for blank scope")
	}
}

func TestCheckAndMarkFirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	guard, err := NewGuard(store, 24*time.Hour, "webhook:shopify")
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}

	already, err := guard.CheckAndMark(context.Background(), "b54557e4-bdd9-4b37-8a5f-bf7d70bcd043")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false")
	}
	if store.lastKey != "nursery:idempotency:webhook:shopify:b54557e4-bdd9-4b37-8a5f-bf7d70bcd043" {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkAlreadySeen(t *testing.T) {
	guard, _ := NewGuard(&fakeStore{setNXResult: false}, time.Hour, "webhook:woocommerce")
	already, err := guard.CheckAndMark(context.Background(), "delivery-7")
	if err != nil {
		t.Fatalf("CheckAndMark: %v", err)
	}
	if !already {
		t.Fatalf("expected already seen")
	}
}

func TestCheckAndMarkErrors(t *testing.T) {
	guard, _ := NewGuard(&fakeStore{setNXError: errors.New("boom")}, time.Hour, "outbox:orders")
	if _, err := guard.CheckAndMark(context.Background(), "evt-1"); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty id")
	}
}

func TestDelete(t *testing.T) {
	store := &fakeStore{}
	guard, _ := NewGuard(store, time.Hour, "outbox:orders")
	if err := guard.Delete(context.Background(), "evt-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if store.lastDeleted != "nursery:idempotency:outbox:orders:evt-1" {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}
