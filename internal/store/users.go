package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// User is a member profile keyed by the identity provider's user id.
type User struct {
	ID                    string `json:"id"`
	Email                 string `json:"email"`
	Name                  string `json:"name"`
	InviteCode            string `json:"invite_code"`
	EmailOptedIn          bool   `json:"email_opted_in"`
	EmailOptInConfirmedAt *int64 `json:"email_opt_in_confirmed_at,omitempty"`
	CreatedAt             int64  `json:"created_at"`
}

const userColumns = `id, email, name, invite_code, email_opted_in, email_opt_in_confirmed_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var u User
	var optedIn int
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.InviteCode, &optedIn, &u.EmailOptInConfirmedAt, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.EmailOptedIn = optedIn != 0
	return &u, nil
}

// InsertUser creates a profile. A duplicate id or invite code returns ErrConflict.
func (db *DB) InsertUser(ctx context.Context, u *User) error {
	if u.CreatedAt == 0 {
		u.CreatedAt = db.nowMillis()
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, u.InviteCode, boolToInt(u.EmailOptedIn), u.EmailOptInConfirmedAt, u.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("insert user %s: %w", u.ID, ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns the profile with the given id.
func (db *DB) GetUser(ctx context.Context, id string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetUserByInviteCode returns the profile owning the invite code.
func (db *DB) GetUserByInviteCode(ctx context.Context, code string) (*User, error) {
	u, err := scanUser(db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE invite_code = ?`, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by invite code: %w", err)
	}
	return u, nil
}

// ListUsers returns the profiles for the given ids, keyed by id. Unknown ids
// are silently absent from the result.
func (db *DB) ListUsers(ctx context.Context, ids []string) (map[string]User, error) {
	users := make(map[string]User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders(len(ids))+`)
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users[u.ID] = *u
	}
	return users, rows.Err()
}

// UpdateUserName changes the display name of a profile.
func (db *DB) UpdateUserName(ctx context.Context, id, name string) error {
	result, err := db.ExecContext(ctx, `UPDATE users SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEmailOptIn toggles reminder emails. The confirmation stamp is set when
// enabling and cleared when disabling.
func (db *DB) SetEmailOptIn(ctx context.Context, id string, enabled bool) error {
	var confirmedAt *int64
	if enabled {
		now := db.nowMillis()
		confirmedAt = &now
	}
	result, err := db.ExecContext(ctx, `
		UPDATE users SET email_opted_in = ?, email_opt_in_confirmed_at = ?
		WHERE id = ?
	`, boolToInt(enabled), confirmedAt, id)
	if err != nil {
		return fmt.Errorf("set email opt-in: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
