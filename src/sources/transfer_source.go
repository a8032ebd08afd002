// src/sources/transfer_source.go
package sources

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/model"
	"github.com/hivefund/reconciler/src/models"
	"github.com/hivefund/reconciler/src/processors"
)

const (
	DefaultSourceTimeout = 30 * time.Second
	DefaultRetryInterval = 250 * time.Millisecond
)

// SQLTransferSource reads transfers from the sqlite mirror of the chain. Each attempt runs under
// its own timeout; transient failures are retried with exponential backoff.
type SQLTransferSource struct {
	db            *sql.DB
	timeout       time.Duration
	maxRetries    int
	retryInterval time.Duration
}

// Option configures a SQLTransferSource.
type Option func(*SQLTransferSource)

// WithRetryInterval sets the first backoff interval.
func WithRetryInterval(d time.Duration) Option {
	return func(s *SQLTransferSource) { s.retryInterval = d }
}

// NewSQLTransferSource creates a transfer source over db.
func NewSQLTransferSource(db *sql.DB, timeout time.Duration, maxRetries int, opts ...Option) *SQLTransferSource {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	s := &SQLTransferSource{db: db, timeout: timeout, maxRetries: maxRetries, retryInterval: DefaultRetryInterval}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transfers implements processors.TransferSource.
func (s *SQLTransferSource) Transfers(ctx context.Context, account string, r *models.DateRange) ([]models.Transfer, error) {
	if s.db == nil {
		return nil, models.NewSourceUnavailable(processors.SourceTransfers, errors.New("database not initialized"))
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInterval
	eb.MaxElapsedTime = 0 // bounded by maxRetries and ctx instead
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.maxRetries)), ctx)

	attempt := 0
	op := func() ([]models.Transfer, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		transfers, err := model.GetTransfersByAccount(callCtx, s.db, account, r)
		if err != nil && ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return transfers, err
	}
	notify := func(err error, next time.Duration) {
		logger.FromContext(ctx).Warn("Transfer query failed, retrying", "account", account, "attempt", attempt, "retryIn", next, "error", err)
	}

	transfers, err := backoff.RetryNotifyWithData(op, b, notify)
	if err != nil {
		logger.FromContext(ctx).Error("Transfer source unavailable", "account", account, "attempts", attempt, "error", err)
		return nil, models.NewSourceUnavailable(processors.SourceTransfers, err)
	}
	return transfers, nil
}
