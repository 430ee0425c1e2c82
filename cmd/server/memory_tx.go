package main

import (
	"context"
	"sync"
)

// memoryTx is the dev-mode transactional boundary: one coarse mutex shared by
// the listing and verification services so the finalizer's two-record unit
// cannot interleave with bids, draws or sweeps.
type memoryTx struct {
	mu sync.Mutex
}

func newMemoryTx() *memoryTx {
	return &memoryTx{}
}

func (t *memoryTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
