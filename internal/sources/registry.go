package sources

import (
	"fmt"

	pkgerrors "github.com/sudhir1041/nursery-orders/pkg/errors"
	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// Registry resolves the adapter for a source tag.
type Registry struct {
	adapters map[enums.Source]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[enums.Source]Adapter, len(adapters))}
	for _, a := range adapters {
		if a != nil {
			r.adapters[a.Source()] = a
		}
	}
	return r
}

// Adapter returns the adapter registered for source.
func (r *Registry) Adapter(source enums.Source) (Adapter, error) {
	if r != nil {
		if a, ok := r.adapters[source]; ok {
			return a, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("no adapter registered for source %q", source))
}

// Fetcher returns the adapter for source when it can re-fetch single orders.
func (r *Registry) Fetcher(source enums.Source) (Fetcher, bool) {
	a, err := r.Adapter(source)
	if err != nil {
		return nil, false
	}
	f, ok := a.(Fetcher)
	return f, ok
}

// BatchFetcher returns the adapter for source when it supports backfill.
func (r *Registry) BatchFetcher(source enums.Source) (BatchFetcher, bool) {
	a, err := r.Adapter(source)
	if err != nil {
		return nil, false
	}
	f, ok := a.(BatchFetcher)
	return f, ok
}

// WebhookSource returns the adapter for source when it receives webhooks.
func (r *Registry) WebhookSource(source enums.Source) (WebhookSource, bool) {
	a, err := r.Adapter(source)
	if err != nil {
		return nil, false
	}
	w, ok := a.(WebhookSource)
	return w, ok
}
