package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "users: profiles keyed by identity-provider id",
		SQL: `
CREATE TABLE users (
    id                        TEXT PRIMARY KEY,
    email                     TEXT NOT NULL,
    name                      TEXT NOT NULL,
    invite_code               TEXT NOT NULL UNIQUE CHECK (length(invite_code) = 8),
    email_opted_in            INTEGER NOT NULL DEFAULT 0,
    email_opt_in_confirmed_at INTEGER,
    created_at                INTEGER NOT NULL
);

CREATE INDEX idx_users_email ON users(lower(email));
`,
	},
	{
		Version:     2,
		Description: "important_dates: recurring annual dates per owner",
		SQL: `
CREATE TABLE important_dates (
    id         TEXT PRIMARY KEY,
    owner_id   TEXT NOT NULL,
    label      TEXT NOT NULL CHECK (length(label) > 0),
    month      INTEGER NOT NULL CHECK (month BETWEEN 1 AND 12),
    day        INTEGER NOT NULL CHECK (day BETWEEN 1 AND 31),
    created_at INTEGER NOT NULL,

    FOREIGN KEY (owner_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_dates_owner     ON important_dates(owner_id);
CREATE INDEX idx_dates_month_day ON important_dates(month, day);
`,
	},
	{
		Version:     3,
		Description: "connections: one row per unordered user pair",
		SQL: `
CREATE TABLE connections (
    id           TEXT PRIMARY KEY,
    user_a_id    TEXT NOT NULL,
    user_b_id    TEXT NOT NULL,
    pair_key     TEXT NOT NULL UNIQUE,
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'confirmed')),
    created_at   INTEGER NOT NULL,
    confirmed_at INTEGER,

    CHECK (user_a_id <> user_b_id),
    FOREIGN KEY (user_a_id) REFERENCES users(id) ON DELETE CASCADE,
    FOREIGN KEY (user_b_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_connections_a      ON connections(user_a_id);
CREATE INDEX idx_connections_b      ON connections(user_b_id);
CREATE INDEX idx_connections_status ON connections(status);
`,
	},
	{
		Version:     4,
		Description: "invites: outreach to contacts who are not members yet",
		SQL: `
CREATE TABLE invites (
    id            TEXT PRIMARY KEY,
    inviter_id    TEXT NOT NULL,
    contact_name  TEXT NOT NULL CHECK (length(contact_name) > 0),
    contact_email TEXT,
    status        TEXT NOT NULL DEFAULT 'queued' CHECK (status IN ('queued', 'sent', 'accepted')),
    created_at    INTEGER NOT NULL,
    sent_at       INTEGER,
    accepted_at   INTEGER,

    FOREIGN KEY (inviter_id) REFERENCES users(id) ON DELETE CASCADE
);

CREATE INDEX idx_invites_inviter ON invites(inviter_id, created_at);
CREATE INDEX idx_invites_email   ON invites(inviter_id, lower(contact_email));
`,
	},
	{
		Version:     5,
		Description: "reminder_deliveries: ledger of reminders delivered per calendar day",
		SQL: `
CREATE TABLE reminder_deliveries (
    send_date    TEXT NOT NULL,
    recipient_id TEXT NOT NULL,
    date_id      TEXT NOT NULL,
    subject_id   TEXT NOT NULL,
    delivered_at INTEGER NOT NULL,

    PRIMARY KEY (send_date, recipient_id, date_id)
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
