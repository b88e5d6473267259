package sqlite

import "context"

const schemaDDL = `
CREATE TABLE IF NOT EXISTS threads (
	id                TEXT PRIMARY KEY,
	board             TEXT NOT NULL,
	title             TEXT NOT NULL,
	author            TEXT NOT NULL,
	text              TEXT NOT NULL DEFAULT '',
	created_utc       INTEGER NOT NULL,
	permalink         TEXT NOT NULL,
	score             INTEGER NOT NULL DEFAULT 0,
	upvote_ratio      REAL NOT NULL DEFAULT 0,
	comment_count     INTEGER NOT NULL DEFAULT 0,
	fetched_at        INTEGER NOT NULL DEFAULT 0,
	last_activity_utc INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_threads_board ON threads(board);
CREATE INDEX IF NOT EXISTS idx_threads_created_utc ON threads(created_utc);
CREATE INDEX IF NOT EXISTS idx_threads_last_activity_utc ON threads(last_activity_utc);

CREATE TABLE IF NOT EXISTS thread_images (
	thread_id TEXT NOT NULL,
	url       TEXT NOT NULL,
	FOREIGN KEY(thread_id) REFERENCES threads(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_thread_images_thread_id ON thread_images(thread_id);

CREATE TABLE IF NOT EXISTS comments (
	id               TEXT PRIMARY KEY,
	thread_id        TEXT NOT NULL,
	parent_id        TEXT NOT NULL,
	author           TEXT NOT NULL,
	body             TEXT NOT NULL,
	score            INTEGER NOT NULL DEFAULT 0,
	created_utc      INTEGER NOT NULL,
	fetched_at       INTEGER NOT NULL DEFAULT 0,
	last_updated_utc INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY(thread_id) REFERENCES threads(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_comments_thread_id ON comments(thread_id);
CREATE INDEX IF NOT EXISTS idx_comments_parent_id ON comments(parent_id);

CREATE TABLE IF NOT EXISTS comment_images (
	comment_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	FOREIGN KEY(comment_id) REFERENCES comments(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_comment_images_comment_id ON comment_images(comment_id);
`

// migrate applies the schema idempotently (CREATE ... IF NOT EXISTS, safe
// to run on every startup) and then runs the one-shot
// last_activity_utc-backfill migration for databases created before that
// column existed.
func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaDDL); err != nil {
		return err
	}
	return s.backfillLastActivity(ctx)
}

// backfillLastActivity sets last_activity_utc = created_utc for any row
// left at the column's zero-value default, which only ever happens for
// rows written before this column existed in the schema (§4.1: "a one-shot
// migration step adds lastActivityUtc and backfills it to createdUtc if
// absent").
func (s *Store) backfillLastActivity(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE threads SET last_activity_utc = created_utc WHERE last_activity_utc = 0`)
	return err
}
