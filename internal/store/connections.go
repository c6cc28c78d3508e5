package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Connection statuses.
const (
	ConnectionPending   = "pending"
	ConnectionConfirmed = "confirmed"
)

// Connection is the single row stored for an unordered pair of users.
// UserAID is whoever initiated the connection.
type Connection struct {
	ID          string `json:"id"`
	UserAID     string `json:"user_a_id"`
	UserBID     string `json:"user_b_id"`
	Status      string `json:"status"`
	CreatedAt   int64  `json:"created_at"`
	ConfirmedAt *int64 `json:"confirmed_at,omitempty"`
}

// Involves reports whether userID is one of the two parties.
func (c *Connection) Involves(userID string) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// Other returns the party that is not userID.
func (c *Connection) Other(userID string) string {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// ConnectionView is a connection seen from one side, with the other party
// resolved.
type ConnectionView struct {
	Connection
	OtherID    string `json:"other_id"`
	OtherName  string `json:"other_name"`
	OtherEmail string `json:"other_email"`
}

// PairKey returns the order-independent key for a pair of user ids.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

const connectionColumns = `id, user_a_id, user_b_id, status, created_at, confirmed_at`

func scanConnection(row rowScanner) (*Connection, error) {
	var c Connection
	if err := row.Scan(&c.ID, &c.UserAID, &c.UserBID, &c.Status, &c.CreatedAt, &c.ConfirmedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConnection returns a connection by id.
func (db *DB) GetConnection(ctx context.Context, id string) (*Connection, error) {
	c, err := scanConnection(db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get connection: %w", err)
	}
	return c, nil
}

// FindConnection returns the row for the unordered pair {a, b}.
func (db *DB) FindConnection(ctx context.Context, a, b string) (*Connection, error) {
	c, err := scanConnection(db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE pair_key = ?`, PairKey(a, b)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find connection: %w", err)
	}
	return c, nil
}

// InsertPendingConnection stores a pending row from a to b unless a row for
// the pair already exists, and returns whichever row is stored. Two racing
// inserts for the same pair resolve to one row through the pair_key constraint.
func (db *DB) InsertPendingConnection(ctx context.Context, a, b string) (*Connection, error) {
	_, err := db.ExecContext(ctx, `
		INSERT INTO connections (id, user_a_id, user_b_id, pair_key, status, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(pair_key) DO NOTHING
	`, db.newID(), a, b, PairKey(a, b), db.nowMillis())
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("insert connection: %w", err)
	}
	return db.FindConnection(ctx, a, b)
}

// UpsertConfirmedConnection stores a confirmed row for the pair, upgrading a
// pending row in place, and returns the stored row.
func (db *DB) UpsertConfirmedConnection(ctx context.Context, a, b string) (*Connection, error) {
	now := db.nowMillis()
	_, err := db.ExecContext(ctx, `
		INSERT INTO connections (id, user_a_id, user_b_id, pair_key, status, created_at, confirmed_at)
		VALUES (?, ?, ?, ?, 'confirmed', ?, ?)
		ON CONFLICT(pair_key) DO UPDATE SET
			status = 'confirmed',
			confirmed_at = COALESCE(connections.confirmed_at, excluded.confirmed_at)
	`, db.newID(), a, b, PairKey(a, b), now, now)
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("upsert confirmed connection: %w", err)
	}
	return db.FindConnection(ctx, a, b)
}

// ConfirmConnection moves a pending row to confirmed. Confirming an already
// confirmed row leaves it untouched.
func (db *DB) ConfirmConnection(ctx context.Context, id string) (*Connection, error) {
	_, err := db.ExecContext(ctx, `
		UPDATE connections SET status = 'confirmed', confirmed_at = ?
		WHERE id = ? AND status = 'pending'
	`, db.nowMillis(), id)
	if err != nil {
		return nil, fmt.Errorf("confirm connection: %w", err)
	}
	return db.GetConnection(ctx, id)
}

// ListConnectionsFor returns userID's connections with the given status, the
// other party resolved on each row.
func (db *DB) ListConnectionsFor(ctx context.Context, userID, status string) ([]ConnectionView, error) {
	return db.listConnectionViews(ctx, `
		SELECT c.id, c.user_a_id, c.user_b_id, c.status, c.created_at, c.confirmed_at,
		       u.id, u.name, u.email
		FROM connections c
		JOIN users u ON u.id = CASE WHEN c.user_a_id = ? THEN c.user_b_id ELSE c.user_a_id END
		WHERE c.status = ? AND (c.user_a_id = ? OR c.user_b_id = ?)
		ORDER BY u.name, c.created_at
	`, userID, status, userID, userID)
}

// ListIncomingRequests returns pending rows addressed to userID.
func (db *DB) ListIncomingRequests(ctx context.Context, userID string) ([]ConnectionView, error) {
	return db.listConnectionViews(ctx, `
		SELECT c.id, c.user_a_id, c.user_b_id, c.status, c.created_at, c.confirmed_at,
		       u.id, u.name, u.email
		FROM connections c
		JOIN users u ON u.id = c.user_a_id
		WHERE c.status = 'pending' AND c.user_b_id = ?
		ORDER BY c.created_at
	`, userID)
}

func (db *DB) listConnectionViews(ctx context.Context, query string, args ...any) ([]ConnectionView, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	views := []ConnectionView{}
	for rows.Next() {
		var v ConnectionView
		if err := rows.Scan(&v.ID, &v.UserAID, &v.UserBID, &v.Status, &v.CreatedAt, &v.ConfirmedAt,
			&v.OtherID, &v.OtherName, &v.OtherEmail); err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// ListConfirmedConnectionsTouching returns every confirmed row with at least
// one party in userIDs.
func (db *DB) ListConfirmedConnectionsTouching(ctx context.Context, userIDs []string) ([]Connection, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(userIDs)*2)
	for _, id := range userIDs {
		args = append(args, id)
	}
	for _, id := range userIDs {
		args = append(args, id)
	}
	in := placeholders(len(userIDs))

	rows, err := db.QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE status = 'confirmed' AND (user_a_id IN (`+in+`) OR user_b_id IN (`+in+`))
		ORDER BY created_at
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list confirmed connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, *c)
	}
	return conns, rows.Err()
}
