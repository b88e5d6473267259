package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// SaveThread upserts t by id. On conflict every scalar field is overwritten
// except last_activity_utc, which becomes max(existing, t.LastActivityUTC);
// if the incoming comment count is higher than the stored one, last
// activity is instead bumped to now (§4.1).
func (s *Store) SaveThread(ctx context.Context, t *model.Thread) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.saveThreadTx(ctx, tx, t); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) saveThreadTx(ctx context.Context, tx *sql.Tx, t *model.Thread) error {
	lastActivity := t.LastActivityUTC
	if lastActivity == 0 {
		lastActivity = t.CreatedUTC
	}
	now := s.nowUnix()

	_, err := tx.ExecContext(ctx, `
		INSERT INTO threads (id, board, title, author, text, created_utc, permalink, score, upvote_ratio, comment_count, fetched_at, last_activity_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			board = excluded.board,
			title = excluded.title,
			author = excluded.author,
			text = excluded.text,
			created_utc = excluded.created_utc,
			permalink = excluded.permalink,
			score = excluded.score,
			upvote_ratio = excluded.upvote_ratio,
			comment_count = excluded.comment_count,
			fetched_at = excluded.fetched_at,
			last_activity_utc = CASE
				WHEN excluded.comment_count > threads.comment_count THEN ?
				ELSE MAX(threads.last_activity_utc, excluded.last_activity_utc)
			END
	`, t.ID, t.Board, t.Title, t.Author, t.Text, t.CreatedUTC, t.Permalink, t.Score, t.UpvoteRatio, t.CommentCount, now, lastActivity, now)
	if err != nil {
		return fmt.Errorf("upserting thread %s: %w", t.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_images WHERE thread_id = ?`, t.ID); err != nil {
		return fmt.Errorf("clearing thread images for %s: %w", t.ID, err)
	}
	if t.ImageURL != "" {
		if _, err := tx.ExecContext(ctx, `INSERT INTO thread_images (thread_id, url) VALUES (?, ?)`, t.ID, t.ImageURL); err != nil {
			return fmt.Errorf("inserting thread image for %s: %w", t.ID, err)
		}
	}
	return nil
}

// SaveThreadsBatch upserts every thread in list inside a single
// transaction. A nil or empty list is a no-op that succeeds (§4.1).
func (s *Store) SaveThreadsBatch(ctx context.Context, list []*model.Thread) error {
	if len(list) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range list {
		if err := s.saveThreadTx(ctx, tx, t); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetThread returns the thread with id, joined with its image row, or
// ErrNotFound.
func (s *Store) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, board, title, author, text, created_utc, permalink, score, upvote_ratio, comment_count, last_activity_utc
		FROM threads WHERE id = ?
	`, id)

	t, err := scanThread(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting thread %s: %w", id, err)
	}

	imageURL, err := s.threadImage(ctx, id)
	if err != nil {
		return nil, err
	}
	t.ImageURL = imageURL
	return t, nil
}

func (s *Store) threadImage(ctx context.Context, threadID string) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, `SELECT url FROM thread_images WHERE thread_id = ? LIMIT 1`, threadID).Scan(&url)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting thread image for %s: %w", threadID, err)
	}
	return url, nil
}

// GetAllThreads returns every thread, ordered by last_activity_utc DESC.
func (s *Store) GetAllThreads(ctx context.Context) ([]*model.Thread, error) {
	return s.queryThreads(ctx, `
		SELECT id, board, title, author, text, created_utc, permalink, score, upvote_ratio, comment_count, last_activity_utc
		FROM threads ORDER BY last_activity_utc DESC
	`)
}

// GetRecentThreads returns up to n threads, newest-active first.
func (s *Store) GetRecentThreads(ctx context.Context, n int) ([]*model.Thread, error) {
	return s.queryThreads(ctx, `
		SELECT id, board, title, author, text, created_utc, permalink, score, upvote_ratio, comment_count, last_activity_utc
		FROM threads ORDER BY last_activity_utc DESC LIMIT ?
	`, n)
}

func (s *Store) queryThreads(ctx context.Context, query string, args ...any) ([]*model.Thread, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying threads: %w", err)
	}
	defer rows.Close()

	var out []*model.Thread
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning thread row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, t := range out {
		imageURL, err := s.threadImage(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		t.ImageURL = imageURL
	}
	return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanThread(row rowScanner) (*model.Thread, error) {
	t := &model.Thread{}
	err := row.Scan(&t.ID, &t.Board, &t.Title, &t.Author, &t.Text, &t.CreatedUTC, &t.Permalink, &t.Score, &t.UpvoteRatio, &t.CommentCount, &t.LastActivityUTC)
	if err != nil {
		return nil, err
	}
	return t, nil
}
