package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ImportantDate is a labeled annual (month, day) entry owned by one user.
type ImportantDate struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Label     string `json:"label"`
	Month     int    `json:"month"`
	Day       int    `json:"day"`
	CreatedAt int64  `json:"created_at"`
}

// CircleDate is a date owned by someone in a user's circle.
type CircleDate struct {
	ImportantDate
	OwnerName string `json:"owner_name"`
}

// MonthDay identifies a day of the year independent of year.
type MonthDay struct {
	Month int
	Day   int
}

const dateColumns = `id, owner_id, label, month, day, created_at`

func scanDate(row rowScanner) (*ImportantDate, error) {
	var d ImportantDate
	if err := row.Scan(&d.ID, &d.OwnerID, &d.Label, &d.Month, &d.Day, &d.CreatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDates returns the owner's dates ordered by month, day, then label.
func (db *DB) ListDates(ctx context.Context, ownerID string) ([]ImportantDate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+dateColumns+` FROM important_dates
		WHERE owner_id = ?
		ORDER BY month, day, label
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	defer rows.Close()

	dates := []ImportantDate{}
	for rows.Next() {
		d, err := scanDate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, *d)
	}
	return dates, rows.Err()
}

// GetDate returns a single date by id regardless of owner.
func (db *DB) GetDate(ctx context.Context, id string) (*ImportantDate, error) {
	d, err := scanDate(db.QueryRowContext(ctx, `SELECT `+dateColumns+` FROM important_dates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get date: %w", err)
	}
	return d, nil
}

// ReplaceDates deletes every date owned by ownerID and inserts dates in a
// single transaction. An entry whose (label, month, day) matches an existing
// date keeps that date's id and created_at, so re-saving an unchanged set
// leaves ids stable; other entries get fresh ids.
func (db *DB) ReplaceDates(ctx context.Context, ownerID string, dates []ImportantDate) ([]ImportantDate, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin replace dates: %w", err)
	}
	defer tx.Rollback()

	existing, err := existingDates(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM important_dates WHERE owner_id = ?`, ownerID); err != nil {
		return nil, fmt.Errorf("delete dates: %w", err)
	}

	now := db.nowMillis()
	inserted := make([]ImportantDate, 0, len(dates))
	for _, d := range dates {
		key := dateKey{d.Label, d.Month, d.Day}
		if prev := existing[key]; len(prev) > 0 {
			d.ID, d.CreatedAt = prev[0].ID, prev[0].CreatedAt
			existing[key] = prev[1:]
		} else {
			d.ID = db.newID()
			d.CreatedAt = now
		}
		d.OwnerID = ownerID
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO important_dates (`+dateColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)
		`, d.ID, d.OwnerID, d.Label, d.Month, d.Day, d.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert date %q: %w", d.Label, err)
		}
		inserted = append(inserted, d)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit replace dates: %w", err)
	}
	return inserted, nil
}

type dateKey struct {
	label      string
	month, day int
}

// existingDates reads ownerID's dates inside tx, grouped by content and
// oldest first within a group.
func existingDates(ctx context.Context, tx *sql.Tx, ownerID string) (map[dateKey][]ImportantDate, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT `+dateColumns+` FROM important_dates
		WHERE owner_id = ?
		ORDER BY created_at, id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("read existing dates: %w", err)
	}
	defer rows.Close()

	out := make(map[dateKey][]ImportantDate)
	for rows.Next() {
		d, err := scanDate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		key := dateKey{d.Label, d.Month, d.Day}
		out[key] = append(out[key], *d)
	}
	return out, rows.Err()
}

// InsertDate adds one date. The id is generated when empty.
func (db *DB) InsertDate(ctx context.Context, d *ImportantDate) error {
	if d.ID == "" {
		d.ID = db.newID()
	}
	d.CreatedAt = db.nowMillis()
	_, err := db.ExecContext(ctx, `
		INSERT INTO important_dates (`+dateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.OwnerID, d.Label, d.Month, d.Day, d.CreatedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert date: %w", err)
	}
	return nil
}

// UpdateDate rewrites label, month and day of a date scoped to its owner.
func (db *DB) UpdateDate(ctx context.Context, d *ImportantDate) error {
	result, err := db.ExecContext(ctx, `
		UPDATE important_dates SET label = ?, month = ?, day = ?
		WHERE id = ? AND owner_id = ?
	`, d.Label, d.Month, d.Day, d.ID, d.OwnerID)
	if err != nil {
		return fmt.Errorf("update date: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDate removes a date scoped to its owner.
func (db *DB) DeleteDate(ctx context.Context, ownerID, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM important_dates WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete date: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListDatesOn returns every date falling on one of the given days.
func (db *DB) ListDatesOn(ctx context.Context, days []MonthDay) ([]ImportantDate, error) {
	if len(days) == 0 {
		return nil, nil
	}

	var where string
	args := make([]any, 0, len(days)*2)
	for i, md := range days {
		if i > 0 {
			where += " OR "
		}
		where += "(month = ? AND day = ?)"
		args = append(args, md.Month, md.Day)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+dateColumns+` FROM important_dates
		WHERE `+where+`
		ORDER BY owner_id, month, day, label
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list dates on: %w", err)
	}
	defer rows.Close()

	var dates []ImportantDate
	for rows.Next() {
		d, err := scanDate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, *d)
	}
	return dates, rows.Err()
}

// ListCircleDates returns the dates of every confirmed connection of userID.
func (db *DB) ListCircleDates(ctx context.Context, userID string) ([]CircleDate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT d.id, d.owner_id, d.label, d.month, d.day, d.created_at, u.name
		FROM connections c
		JOIN important_dates d
		  ON d.owner_id = CASE WHEN c.user_a_id = ? THEN c.user_b_id ELSE c.user_a_id END
		JOIN users u ON u.id = d.owner_id
		WHERE c.status = 'confirmed' AND (c.user_a_id = ? OR c.user_b_id = ?)
		ORDER BY d.month, d.day, u.name, d.label
	`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list circle dates: %w", err)
	}
	defer rows.Close()

	dates := []CircleDate{}
	for rows.Next() {
		var cd CircleDate
		if err := rows.Scan(&cd.ID, &cd.OwnerID, &cd.Label, &cd.Month, &cd.Day, &cd.CreatedAt, &cd.OwnerName); err != nil {
			return nil, fmt.Errorf("scan circle date: %w", err)
		}
		dates = append(dates, cd)
	}
	return dates, rows.Err()
}
