package historyRepo

import (
	"context"

	"blockvault/internal/model/txHistory"

	"github.com/jackc/pgx/v5"
)

// HistoryRepository persists a local log of confirmed ledger mutations so the
// UI can show a transaction history without replaying chain events. It is a
// convenience record, never an authority: the ledger remains the source of
// truth.
type HistoryRepository struct {
	conn *pgx.Conn
}

func New(db *pgx.Conn) *HistoryRepository {
	return &HistoryRepository{conn: db}
}

func (r *HistoryRepository) Init(ctx context.Context) error {
	_, err := r.conn.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS tx_history (
			id BIGSERIAL PRIMARY KEY,
			account TEXT NOT NULL,
			op TEXT NOT NULL,
			file_id TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	return err
}

func (r *HistoryRepository) Record(ctx context.Context, entry *txHistory.Entry) error {
	_, err := r.conn.Exec(ctx,
		`INSERT INTO tx_history (account, op, file_id, tx_hash, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Account, entry.Op, entry.FileID, entry.TxHash, entry.Status, entry.CreatedAt)
	return err
}

func (r *HistoryRepository) ListByAccount(ctx context.Context, account string, limit int) ([]*txHistory.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.conn.Query(ctx,
		`SELECT id, account, op, file_id, tx_hash, status, created_at
		 FROM tx_history WHERE account = $1
		 ORDER BY created_at DESC LIMIT $2`, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*txHistory.Entry
	for rows.Next() {
		var e txHistory.Entry
		if err := rows.Scan(&e.ID, &e.Account, &e.Op, &e.FileID, &e.TxHash, &e.Status, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
