package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	txcontext "twinsale/pkg/platform/tx"
)

// defaultTxTimeout bounds a multi-write unit so a stalled transaction cannot
// hold row locks indefinitely.
const defaultTxTimeout = 10 * time.Second

// StoreTx runs multi-write units inside one database transaction. The
// transaction travels via context, so any store method called inside fn joins
// it and row locks taken by store Execute calls hold until commit.
type StoreTx struct {
	db *sql.DB
}

func NewStoreTx(db *sql.DB) *StoreTx {
	return &StoreTx{db: db}
}

func (t *StoreTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTxTimeout)
	defer cancel()

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
