package store

import "context"

// schema is applied at startup. Statements are idempotent so both binaries
// can run it safely; there is no separate migration tool at this scale.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id           TEXT PRIMARY KEY,
	email        TEXT NOT NULL UNIQUE,
	password     TEXT NOT NULL,
	roll_number  TEXT NOT NULL,
	role         TEXT NOT NULL DEFAULT 'student',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS wallets (
	account_id      TEXT PRIMARY KEY REFERENCES accounts(id),
	current_points  BIGINT NOT NULL DEFAULT 0 CHECK (current_points >= 0),
	lifetime_points BIGINT NOT NULL DEFAULT 0,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS ledger_entries (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL REFERENCES accounts(id),
	type       TEXT NOT NULL,
	amount     BIGINT NOT NULL CHECK (amount > 0),
	source     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_ledger_account ON ledger_entries(account_id, created_at);

CREATE TABLE IF NOT EXISTS refresh_tokens (
	token      TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	revoked    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance_sessions (
	id         TEXT PRIMARY KEY,
	code       TEXT NOT NULL,
	teacher_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	expires_at TIMESTAMPTZ NOT NULL,
	is_active  BOOLEAN NOT NULL DEFAULT TRUE
);
CREATE INDEX IF NOT EXISTS idx_sessions_code ON attendance_sessions(code);
CREATE INDEX IF NOT EXISTS idx_sessions_teacher ON attendance_sessions(teacher_id);

CREATE TABLE IF NOT EXISTS attendance_records (
	session_id          TEXT NOT NULL,
	student_id          TEXT NOT NULL,
	student_email       TEXT NOT NULL,
	student_roll_number TEXT NOT NULL,
	marked_at           TIMESTAMPTZ NOT NULL,
	status              TEXT NOT NULL DEFAULT 'present',
	PRIMARY KEY (session_id, student_id)
);
CREATE INDEX IF NOT EXISTS idx_records_student ON attendance_records(student_id);

CREATE TABLE IF NOT EXISTS listings (
	id                TEXT PRIMARY KEY,
	item_name         TEXT NOT NULL,
	description       TEXT NOT NULL,
	lending_price     BIGINT NOT NULL CHECK (lending_price >= 0),
	owner_id          TEXT NOT NULL,
	owner_email       TEXT NOT NULL,
	owner_roll_number TEXT NOT NULL,
	category          TEXT NOT NULL DEFAULT 'Other',
	status            TEXT NOT NULL DEFAULT 'available',
	borrower_id       TEXT,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_listings_owner ON listings(owner_id);

CREATE TABLE IF NOT EXISTS requests (
	id                    TEXT PRIMARY KEY,
	item_name             TEXT NOT NULL,
	description           TEXT NOT NULL,
	offering_price        BIGINT NOT NULL CHECK (offering_price >= 0),
	requester_id          TEXT NOT NULL,
	requester_email       TEXT NOT NULL,
	requester_roll_number TEXT NOT NULL,
	category              TEXT NOT NULL DEFAULT 'Other',
	status                TEXT NOT NULL DEFAULT 'active',
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id);

CREATE TABLE IF NOT EXISTS vouchers (
	ticket_id   TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	perk_id     TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL,
	type        TEXT NOT NULL,
	redeemed_at TIMESTAMPTZ NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_vouchers_account ON vouchers(account_id);

CREATE TABLE IF NOT EXISTS chats (
	id              TEXT PRIMARY KEY,
	kind            TEXT NOT NULL,
	participant_a   TEXT NOT NULL,
	participant_b   TEXT NOT NULL,
	details         JSONB NOT NULL DEFAULT '{}',
	item_id         TEXT,
	item_name       TEXT,
	post_id         TEXT,
	post_content    TEXT,
	last_message    TEXT,
	last_message_at TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_chats_post ON chats(post_id);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	chat_id    TEXT NOT NULL REFERENCES chats(id),
	sender_id  TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, created_at);

CREATE TABLE IF NOT EXISTS posts (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	author_id  TEXT NOT NULL,
	alias      TEXT NOT NULL,
	likes      BIGINT NOT NULL DEFAULT 0,
	status     TEXT NOT NULL DEFAULT 'approved',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// Migrate applies the schema to the connected database.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.Client.ExecContext(ctx, schema)
	return err
}
