package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of SQLite schema migrations.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id             TEXT NOT NULL,
	type                TEXT NOT NULL,
	priority            TEXT NOT NULL DEFAULT 'medium',
	status              TEXT NOT NULL DEFAULT 'unread',
	title               TEXT NOT NULL,
	message             TEXT NOT NULL,
	data                TEXT,
	actions             TEXT,
	expires_at          INTEGER,
	related_entity_id   TEXT NOT NULL DEFAULT '',
	related_entity_type TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL,
	delivered_at        INTEGER
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id, id);
CREATE INDEX IF NOT EXISTS idx_notifications_undelivered ON notifications(delivered_at, created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS notification_preferences (
	user_id            TEXT PRIMARY KEY,
	enable_push        INTEGER NOT NULL DEFAULT 1,
	enable_email       INTEGER NOT NULL DEFAULT 0,
	enable_sms         INTEGER NOT NULL DEFAULT 0,
	email              TEXT NOT NULL DEFAULT '',
	notification_types TEXT NOT NULL DEFAULT '{}',
	quiet_hours_start  TEXT NOT NULL DEFAULT '',
	quiet_hours_end    TEXT NOT NULL DEFAULT ''
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
