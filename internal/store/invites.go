package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Invite statuses. An abandoned invite is never stored as its own status.
const (
	InviteQueued   = "queued"
	InviteSent     = "sent"
	InviteAccepted = "accepted"
)

// Invite tracks outreach from a member to a contact who has not joined yet.
type Invite struct {
	ID           string  `json:"id"`
	InviterID    string  `json:"inviter_id"`
	ContactName  string  `json:"contact_name"`
	ContactEmail *string `json:"contact_email,omitempty"`
	Status       string  `json:"status"`
	CreatedAt    int64   `json:"created_at"`
	SentAt       *int64  `json:"sent_at,omitempty"`
	AcceptedAt   *int64  `json:"accepted_at,omitempty"`
}

const inviteColumns = `id, inviter_id, contact_name, contact_email, status, created_at, sent_at, accepted_at`

func scanInvite(row rowScanner) (*Invite, error) {
	var inv Invite
	if err := row.Scan(&inv.ID, &inv.InviterID, &inv.ContactName, &inv.ContactEmail, &inv.Status,
		&inv.CreatedAt, &inv.SentAt, &inv.AcceptedAt); err != nil {
		return nil, err
	}
	return &inv, nil
}

// InsertInvites stores one queued invite per entry in a single transaction.
func (db *DB) InsertInvites(ctx context.Context, inviterID string, invites []Invite) ([]Invite, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert invites: %w", err)
	}
	defer tx.Rollback()

	now := db.nowMillis()
	created := make([]Invite, 0, len(invites))
	for _, inv := range invites {
		inv.ID = db.newID()
		inv.InviterID = inviterID
		inv.Status = InviteQueued
		inv.CreatedAt = now
		inv.SentAt = nil
		inv.AcceptedAt = nil
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO invites (id, inviter_id, contact_name, contact_email, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, inv.ID, inv.InviterID, inv.ContactName, inv.ContactEmail, inv.Status, inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert invite for %q: %w", inv.ContactName, err)
		}
		created = append(created, inv)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit invites: %w", err)
	}
	return created, nil
}

// GetInvite returns an invite by id.
func (db *DB) GetInvite(ctx context.Context, id string) (*Invite, error) {
	inv, err := scanInvite(db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invites WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invite: %w", err)
	}
	return inv, nil
}

// ListInvites returns every invite created by inviterID, oldest first.
func (db *DB) ListInvites(ctx context.Context, inviterID string) ([]Invite, error) {
	return db.listInvites(ctx, `
		SELECT `+inviteColumns+` FROM invites
		WHERE inviter_id = ?
		ORDER BY created_at, rowid
	`, inviterID)
}

// ListOpenInvites returns inviterID's invites that are still queued or sent.
func (db *DB) ListOpenInvites(ctx context.Context, inviterID string) ([]Invite, error) {
	return db.listInvites(ctx, `
		SELECT `+inviteColumns+` FROM invites
		WHERE inviter_id = ? AND status IN ('queued', 'sent')
		ORDER BY created_at, rowid
	`, inviterID)
}

func (db *DB) listInvites(ctx context.Context, query string, args ...any) ([]Invite, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	invites := []Invite{}
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// MarkInviteSent stamps sent_at and moves the invite to sent. Re-sending an
// already sent invite re-stamps it; accepted invites are left alone and
// reported as ErrNotFound.
func (db *DB) MarkInviteSent(ctx context.Context, inviterID, id string) (*Invite, error) {
	inv, err := scanInvite(db.QueryRowContext(ctx, `
		UPDATE invites SET status = 'sent', sent_at = ?
		WHERE id = ? AND inviter_id = ? AND status IN ('queued', 'sent')
		RETURNING `+inviteColumns,
		db.nowMillis(), id, inviterID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark invite sent: %w", err)
	}
	return inv, nil
}

// AcceptLatestInvite accepts the most recent queued or sent invite from
// inviterID whose contact email matches email case-insensitively. The match
// and the update happen in one statement so a stale read can never accept more
// than one row. Returns ErrNotFound when nothing matches.
func (db *DB) AcceptLatestInvite(ctx context.Context, inviterID, email string) (*Invite, error) {
	inv, err := scanInvite(db.QueryRowContext(ctx, `
		UPDATE invites SET status = 'accepted', accepted_at = ?
		WHERE id = (
			SELECT id FROM invites
			WHERE inviter_id = ?
			  AND contact_email IS NOT NULL
			  AND lower(contact_email) = lower(?)
			  AND status IN ('queued', 'sent')
			ORDER BY created_at DESC, rowid DESC
			LIMIT 1
		)
		RETURNING `+inviteColumns,
		db.nowMillis(), inviterID, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("accept invite: %w", err)
	}
	return inv, nil
}
