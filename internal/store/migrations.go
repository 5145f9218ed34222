package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations applied to each
// per-account database. Each migration's version must be sequential
// starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS folder_metadata (
	folder            TEXT PRIMARY KEY,
	last_uid_seen     INTEGER NOT NULL DEFAULT 0,
	total_messages    INTEGER NOT NULL DEFAULT 0,
	last_sync_time    DATETIME,
	sync_in_progress  INTEGER NOT NULL DEFAULT 0 CHECK(sync_in_progress IN (0, 1)),
	last_error        TEXT NOT NULL DEFAULT '',
	version           INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS emails (
	folder        TEXT NOT NULL,
	uid           INTEGER NOT NULL,
	message_id    TEXT NOT NULL DEFAULT '',
	subject       TEXT NOT NULL DEFAULT '',
	date          DATETIME NOT NULL,
	from_addrs    TEXT NOT NULL DEFAULT '[]',
	to_addrs      TEXT NOT NULL DEFAULT '[]',
	cc_addrs      TEXT NOT NULL DEFAULT '[]',
	bcc_addrs     TEXT NOT NULL DEFAULT '[]',
	reply_to      TEXT NOT NULL DEFAULT '[]',
	flags         TEXT NOT NULL DEFAULT '[]',
	seen          INTEGER NOT NULL DEFAULT 0 CHECK(seen IN (0, 1)),
	body_text     TEXT NOT NULL DEFAULT '',
	body_html     TEXT NOT NULL DEFAULT '',
	raw_headers   TEXT NOT NULL DEFAULT '',
	cached_at     DATETIME NOT NULL,
	PRIMARY KEY (folder, uid),
	FOREIGN KEY (folder) REFERENCES folder_metadata(folder) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_emails_date ON emails(folder, date DESC);
CREATE INDEX IF NOT EXISTS idx_emails_message_id ON emails(message_id);
CREATE INDEX IF NOT EXISTS idx_emails_cached_at ON emails(cached_at);

CREATE TABLE IF NOT EXISTS attachments (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	folder        TEXT NOT NULL,
	uid           INTEGER NOT NULL,
	filename      TEXT NOT NULL DEFAULT '',
	content_type  TEXT NOT NULL DEFAULT '',
	data          BLOB,
	FOREIGN KEY (folder, uid) REFERENCES emails(folder, uid) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_attachments_email ON attachments(folder, uid);

CREATE TABLE IF NOT EXISTS email_operations (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	kind         TEXT NOT NULL,
	folder       TEXT NOT NULL,
	uid          INTEGER NOT NULL,
	dest_folder  TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	processed    INTEGER NOT NULL DEFAULT 0 CHECK(processed IN (0, 1)),
	attempts     INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_email_operations_pending
	ON email_operations(processed, created_at);

CREATE TABLE IF NOT EXISTS sync_stats (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	folder         TEXT NOT NULL,
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME,
	fetched_count  INTEGER NOT NULL DEFAULT 0,
	error          TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_sync_stats_folder ON sync_stats(folder, started_at DESC);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
