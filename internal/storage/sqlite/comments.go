package sqlite

import (
	"context"
	"fmt"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// SaveComment upserts c and bumps the parent thread's last_activity_utc to
// now (a new or edited comment is activity on the thread, §4.1).
func (s *Store) SaveComment(ctx context.Context, c *model.Comment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := s.nowUnix()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO comments (id, thread_id, parent_id, author, body, score, created_utc, fetched_at, last_updated_utc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			author           = excluded.author,
			body             = excluded.body,
			score            = excluded.score,
			fetched_at       = excluded.fetched_at,
			last_updated_utc = excluded.last_updated_utc
	`, c.ID, c.ThreadID, c.ParentID, c.Author, c.Body, c.Score, c.CreatedUTC, now, now)
	if err != nil {
		return fmt.Errorf("upserting comment %s: %w", c.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM comment_images WHERE comment_id = ?`, c.ID); err != nil {
		return fmt.Errorf("clearing comment images for %s: %w", c.ID, err)
	}
	for _, url := range c.ImageURLs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO comment_images (comment_id, url) VALUES (?, ?)`, c.ID, url); err != nil {
			return fmt.Errorf("inserting comment image for %s: %w", c.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE threads SET last_activity_utc = ? WHERE id = ? AND ? > last_activity_utc`,
		now, c.ThreadID, now); err != nil {
		return fmt.Errorf("bumping thread activity for %s: %w", c.ThreadID, err)
	}

	return tx.Commit()
}

// GetCommentsForThread returns up to limit comments for threadID, newest
// first. limit <= 0 means unbounded.
func (s *Store) GetCommentsForThread(ctx context.Context, threadID string, limit int) ([]*model.Comment, error) {
	query := `
		SELECT id, thread_id, parent_id, author, body, score, created_utc, fetched_at, last_updated_utc
		FROM comments WHERE thread_id = ? ORDER BY created_utc DESC
	`
	args := []any{threadID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying comments for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var out []*model.Comment
	for rows.Next() {
		c := &model.Comment{}
		if err := rows.Scan(&c.ID, &c.ThreadID, &c.ParentID, &c.Author, &c.Body, &c.Score, &c.CreatedUTC, &c.FetchedAt, &c.LastUpdatedUTC); err != nil {
			return nil, fmt.Errorf("scanning comment row: %w", err)
		}
		c.ImageURLs = []string{}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, c := range out {
		urls, err := s.commentImages(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		c.ImageURLs = urls
	}
	return out, nil
}

func (s *Store) commentImages(ctx context.Context, commentID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM comment_images WHERE comment_id = ?`, commentID)
	if err != nil {
		return nil, fmt.Errorf("querying comment images for %s: %w", commentID, err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, err
		}
		urls = append(urls, url)
	}
	return urls, rows.Err()
}
