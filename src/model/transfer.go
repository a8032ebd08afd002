package model

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
)

// timestampLayout keeps stored timestamps lexically ordered.
const timestampLayout = time.RFC3339

// GetTransfersByAccount returns every transfer sent or received by account, ordered by time then
// id. A non-nil r narrows the result to [r.From, r.To); zero bounds are open.
func GetTransfersByAccount(ctx context.Context, db *sql.DB, account string, r *models.DateRange) ([]models.Transfer, error) {
	account = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(account), "@"))

	query := `SELECT id, timestamp, sender, recipient, amount, currency, memo FROM transfers WHERE (sender = ? OR recipient = ?)`
	args := []interface{}{account, account}
	if r != nil {
		if !r.From.IsZero() {
			query += ` AND timestamp >= ?`
			args = append(args, r.From.UTC().Format(timestampLayout))
		}
		if !r.To.IsZero() {
			query += ` AND timestamp < ?`
			args = append(args, r.To.UTC().Format(timestampLayout))
		}
	}
	query += ` ORDER BY timestamp ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transfers := []models.Transfer{}
	for rows.Next() {
		var t models.Transfer
		var ts string
		if err := rows.Scan(&t.ID, &ts, &t.Sender, &t.Recipient, &t.Amount, &t.Currency, &t.Memo); err != nil {
			return nil, err
		}
		t.Timestamp, err = time.Parse(timestampLayout, ts)
		if err != nil {
			logger.L.Warn("Unparseable transfer timestamp in bridge", "id", t.ID, "timestamp", ts)
			return nil, fmt.Errorf("transfer %s: bad timestamp %q: %w", t.ID, ts, err)
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// UpsertTransfers inserts or updates a batch of transfers in one transaction and returns the
// number of rows written.
func UpsertTransfers(ctx context.Context, db *sql.DB, transfers []models.Transfer) (int, error) {
	if len(transfers) == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback() // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transfers (id, timestamp, sender, recipient, amount, currency, memo)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timestamp = excluded.timestamp,
			sender = excluded.sender,
			recipient = excluded.recipient,
			amount = excluded.amount,
			currency = excluded.currency,
			memo = excluded.memo`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, t := range transfers {
		if _, err := stmt.ExecContext(ctx,
			t.ID,
			t.Timestamp.UTC().Format(timestampLayout),
			strings.ToLower(strings.TrimPrefix(t.Sender, "@")),
			strings.ToLower(strings.TrimPrefix(t.Recipient, "@")),
			t.Amount,
			strings.ToUpper(t.Currency),
			t.Memo,
		); err != nil {
			return 0, fmt.Errorf("upsert transfer %s: %w", t.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(transfers), nil
}

// RecordSnapshotLoad logs a bulk load of the transfer mirror.
func RecordSnapshotLoad(ctx context.Context, db *sql.DB, source string, rowCount int) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO snapshot_loads (source, loaded_at, row_count) VALUES (?, ?, ?)`,
		source, time.Now().UTC().Format(timestampLayout), rowCount)
	return err
}

// CountTransfers returns the number of mirrored transfers.
func CountTransfers(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&n)
	return n, err
}
