package database

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

const (
	defaultTxAttempts = 3
	defaultTxTimeout  = 15 * time.Second
)

type txContextKey struct{}

// TxOption customises transaction behaviour.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	timeout  time.Duration
}

// WithTxAttempts overrides how often a transaction is retried after a deadlock or serialisation failure.
func WithTxAttempts(attempts int) TxOption {
	return func(cfg *txConfig) {
		if attempts > 0 {
			cfg.attempts = attempts
		}
	}
}

// WithTxTimeout bounds the transaction duration.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(cfg *txConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// RunTransaction executes fn inside a database transaction. The transaction travels in the context
// handed to fn; Provider.DB picks it up. Calls nested in an existing transaction join it.
func RunTransaction(ctx context.Context, db *gorm.DB, fn func(ctx context.Context) error, opts ...TxOption) error {
	if db == nil {
		return WrapError("transaction", errors.New("database: handle is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("database: transaction function is nil"))
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}

	cfg := txConfig{attempts: defaultTxAttempts, timeout: defaultTxTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	txnCtx := ctx
	if cfg.timeout > 0 {
		deadline, hasDeadline := ctx.Deadline()
		if !hasDeadline || time.Until(deadline) > cfg.timeout {
			var cancel context.CancelFunc
			txnCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
			defer cancel()
		}
	}

	var err error
	for attempt := 0; attempt < cfg.attempts; attempt++ {
		err = db.WithContext(txnCtx).Transaction(func(tx *gorm.DB) error {
			return fn(context.WithValue(txnCtx, txContextKey{}, tx))
		})
		if err == nil || !isRetryable(err) || txnCtx.Err() != nil {
			break
		}
	}
	if err == nil {
		return nil
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Errors raised by fn that are not persistence failures pass through untouched.
	if !isPersistenceError(err) {
		return err
	}
	return WrapError("transaction", err)
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// InTx reports whether ctx carries an open transaction.
func InTx(ctx context.Context) bool {
	_, ok := txFromContext(ctx)
	return ok
}

func isPersistenceError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrRecordNotFound) ||
		IsDuplicateKey(err) || isRetryable(err) || isConnectionFailure(err)
}
