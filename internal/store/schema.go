package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS artifacts (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	summary    TEXT NOT NULL DEFAULT '',
	file_name  TEXT NOT NULL DEFAULT '',
	file_url   TEXT NOT NULL DEFAULT '',
	owner_id   TEXT NOT NULL,
	status     TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 1,
	created_on DATETIME NOT NULL,
	updated_on DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_owner ON artifacts(owner_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_status ON artifacts(status, created_on);

CREATE TABLE IF NOT EXISTS reviews (
	artifact_id  TEXT PRIMARY KEY REFERENCES artifacts(id) ON DELETE CASCADE,
	decision     TEXT NOT NULL,
	reviewer_id  TEXT NOT NULL DEFAULT '',
	comment      TEXT NOT NULL DEFAULT '',
	requested_on DATETIME NOT NULL,
	decided_on   DATETIME
);

CREATE TABLE IF NOT EXISTS ratings (
	artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL,
	score       INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
	rated_on    DATETIME NOT NULL,
	PRIMARY KEY (artifact_id, user_id)
);

CREATE TABLE IF NOT EXISTS communities (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL,
	created_on  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS follows (
	community_id TEXT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
	user_id      TEXT NOT NULL,
	followed_on  DATETIME NOT NULL,
	PRIMARY KEY (community_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_follows_user ON follows(user_id);
`
