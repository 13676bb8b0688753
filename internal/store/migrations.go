package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create session ledger",
		SQL: `
			CREATE TABLE sessions (
				id              TEXT PRIMARY KEY,
				key_str         TEXT NOT NULL,
				channel_id      TEXT NOT NULL,
				account_id      TEXT NOT NULL DEFAULT '',
				chat_id         TEXT NOT NULL,
				display_name    TEXT NOT NULL DEFAULT '',
				started_at      TEXT NOT NULL,
				last_message_at TEXT NOT NULL,
				user_messages   INTEGER NOT NULL DEFAULT 0,
				bot_messages    INTEGER NOT NULL DEFAULT 0,
				ended           INTEGER NOT NULL DEFAULT 0,
				end_reason      TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_sessions_key ON sessions (key_str);
			CREATE INDEX idx_sessions_channel ON sessions (channel_id);
			CREATE INDEX idx_sessions_last ON sessions (last_message_at);
		`,
	},
	{
		Version: 2,
		Name:    "create notes archive with FTS5",
		SQL: `
			CREATE TABLE notes (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				chat_key    TEXT NOT NULL,
				position    INTEGER NOT NULL,
				text        TEXT NOT NULL,
				signature   TEXT NOT NULL DEFAULT '',
				created_at  TEXT NOT NULL
			);

			CREATE INDEX idx_notes_session ON notes (session_id, position);

			CREATE VIRTUAL TABLE notes_fts USING fts5(
				text,
				signature,
				content='notes',
				content_rowid='id'
			);

			CREATE TRIGGER notes_ai AFTER INSERT ON notes BEGIN
				INSERT INTO notes_fts(rowid, text, signature)
				VALUES (new.id, new.text, new.signature);
			END;

			CREATE TRIGGER notes_ad AFTER DELETE ON notes BEGIN
				INSERT INTO notes_fts(notes_fts, rowid, text, signature)
				VALUES ('delete', old.id, old.text, old.signature);
			END;
		`,
	},
}
