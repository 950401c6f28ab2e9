package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// InsertTransaction records a freshly submitted transaction.
func (d *Database) InsertTransaction(ctx context.Context, rec TransactionRecord) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO transactions (signature, payer, priority, retries, status, submitted_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, rec.Signature, rec.Payer, rec.Priority, rec.Retries, rec.Status)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// MarkTransactionStatus transitions a transaction row to the given status.
// Confirmation timestamps are only written when the status is CONFIRMED.
func (d *Database) MarkTransactionStatus(ctx context.Context, signature, status string) error {
	var err error
	if status == TxStatusConfirmed {
		_, err = d.DB.ExecContext(ctx, `
			UPDATE transactions SET status = ?, confirmed_at = CURRENT_TIMESTAMP WHERE signature = ?
		`, status, signature)
	} else {
		_, err = d.DB.ExecContext(ctx, `
			UPDATE transactions SET status = ? WHERE signature = ?
		`, status, signature)
	}
	if err != nil {
		return fmt.Errorf("mark transaction %s: %w", status, err)
	}
	return nil
}

// ListTransactions returns the most recent transaction rows, newest first.
func (d *Database) ListTransactions(ctx context.Context, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT signature, payer, priority, retries, status, submitted_at, confirmed_at
		FROM transactions
		ORDER BY submitted_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var recs []TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		var confirmed sql.NullTime
		if err := rows.Scan(&rec.Signature, &rec.Payer, &rec.Priority, &rec.Retries, &rec.Status, &rec.SubmittedAt, &confirmed); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if confirmed.Valid {
			t := confirmed.Time
			rec.ConfirmedAt = &t
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// UpsertBlacklist inserts or updates a flagged token.
func (d *Database) UpsertBlacklist(ctx context.Context, token, reason string) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO blacklist (token, reason) VALUES (?, ?)
		ON CONFLICT(token) DO UPDATE SET reason = excluded.reason
	`, token, reason)
	if err != nil {
		return fmt.Errorf("upsert blacklist: %w", err)
	}
	return nil
}

// DeleteBlacklist removes a token flag. Removal is an explicit administrative
// action, never automatic.
func (d *Database) DeleteBlacklist(ctx context.Context, token string) error {
	_, err := d.DB.ExecContext(ctx, `DELETE FROM blacklist WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete blacklist: %w", err)
	}
	return nil
}

// ListBlacklist returns all flagged tokens.
func (d *Database) ListBlacklist(ctx context.Context) ([]BlacklistEntry, error) {
	rows, err := d.DB.QueryContext(ctx, `SELECT token, reason, created_at FROM blacklist`)
	if err != nil {
		return nil, fmt.Errorf("query blacklist: %w", err)
	}
	defer rows.Close()

	var entries []BlacklistEntry
	for rows.Next() {
		var e BlacklistEntry
		if err := rows.Scan(&e.Token, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan blacklist entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
