package service

import (
	"context"
	"sync"
)

// inMemoryStoreTx serializes the finalizer's two-record unit with a coarse
// mutex. It pairs with the in-memory stores; the Postgres deployment injects
// a database-backed StoreTx shared with the listing service.
type inMemoryStoreTx struct {
	mu sync.Mutex
}

func newInMemoryStoreTx() *inMemoryStoreTx {
	return &inMemoryStoreTx{}
}

func (t *inMemoryStoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
