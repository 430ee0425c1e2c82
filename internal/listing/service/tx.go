package service

import (
	"context"
	"sync"
)

// inMemoryStoreTx serializes multi-write operations with a coarse mutex. It
// pairs with the in-memory store, where there is no real transaction to
// delegate to; the Postgres deployment injects a database-backed StoreTx.
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
