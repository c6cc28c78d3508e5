package store

import (
	"context"
	"fmt"
)

// Delivery is one ledger entry: a reminder about DateID delivered to
// RecipientID on SendDate (YYYY-MM-DD).
type Delivery struct {
	SendDate    string
	RecipientID string
	DateID      string
	SubjectID   string
	DeliveredAt int64
}

// HasDelivery reports whether the reminder was already delivered on sendDate.
func (db *DB) HasDelivery(ctx context.Context, sendDate, recipientID, dateID string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reminder_deliveries
		WHERE send_date = ? AND recipient_id = ? AND date_id = ?
	`, sendDate, recipientID, dateID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check delivery: %w", err)
	}
	return count > 0, nil
}

// RecordDelivery writes a ledger entry. Recording the same key twice is a no-op.
func (db *DB) RecordDelivery(ctx context.Context, d Delivery) error {
	if d.DeliveredAt == 0 {
		d.DeliveredAt = db.nowMillis()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO reminder_deliveries (send_date, recipient_id, date_id, subject_id, delivered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(send_date, recipient_id, date_id) DO NOTHING
	`, d.SendDate, d.RecipientID, d.DateID, d.SubjectID, d.DeliveredAt)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns the ledger entries for one calendar day.
func (db *DB) ListDeliveries(ctx context.Context, sendDate string) ([]Delivery, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT send_date, recipient_id, date_id, subject_id, delivered_at
		FROM reminder_deliveries WHERE send_date = ?
		ORDER BY delivered_at, recipient_id
	`, sendDate)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.SendDate, &d.RecipientID, &d.DateID, &d.SubjectID, &d.DeliveredAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
