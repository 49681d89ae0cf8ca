package db

import (
	"context"
	"database/sql"
	"time"

	"failwatch/internal/models"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) DB() *sql.DB { return r.db }

func (r *Repository) InsertAlert(ctx context.Context, kind, summary string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO alerts (kind, summary, created_ts) VALUES (?,?,?)`,
		kind, summary, at.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repository) InsertNotificationEvent(ctx context.Context, alertID int64, channel, status string, attempts int, lastError string, sentAt *time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notification_events (alert_id, channel, status, attempts, last_error, sent_ts_nullable) VALUES (?,?,?,?,?,?)`,
		alertID, channel, status, attempts, nullStr(lastError), sentAt)
	return err
}

func (r *Repository) ListRecentAlerts(ctx context.Context, limit int) ([]models.AlertRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, summary, created_ts FROM alerts ORDER BY created_ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.AlertRecord
	for rows.Next() {
		var a models.AlertRecord
		if err := rows.Scan(&a.ID, &a.Kind, &a.Summary, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM notification_events WHERE alert_id IN (SELECT id FROM alerts WHERE created_ts < ?)`, cutoff.UTC()); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM alerts WHERE created_ts < ?`, cutoff.UTC())
	return err
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
