package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// CleanupOldThreads deletes every thread whose last_activity_utc is older
// than ttlSeconds (relative to the store's clock), along with its full
// comment tree and any attached images, and returns the number of threads
// deleted. Runs inside a single transaction (§7).
func (s *Store) CleanupOldThreads(ctx context.Context, ttlSeconds int64) (int, error) {
	cutoff := s.nowUnix() - ttlSeconds

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM threads WHERE last_activity_utc < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("selecting stale threads: %w", err)
	}
	var staleIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scanning stale thread id: %w", err)
		}
		staleIDs = append(staleIDs, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	if len(staleIDs) == 0 {
		return 0, tx.Commit()
	}

	for _, id := range staleIDs {
		if err := deleteThreadCascade(ctx, tx, id); err != nil {
			return 0, fmt.Errorf("deleting thread %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(staleIDs), nil
}

// deleteThreadCascade removes threadID's comment tree (every comment
// reachable by following parent_id, root comments included) and the
// thread row itself. ON DELETE CASCADE on comment_images/thread_images
// handles the leaf image rows automatically.
func deleteThreadCascade(ctx context.Context, tx *sql.Tx, threadID string) error {
	_, err := tx.ExecContext(ctx, `
		WITH RECURSIVE descendant(id) AS (
			SELECT id FROM comments WHERE thread_id = ?
			UNION ALL
			SELECT c.id FROM comments c JOIN descendant d ON c.parent_id = d.id
		)
		DELETE FROM comments WHERE id IN (SELECT id FROM descendant)
	`, threadID)
	if err != nil {
		return fmt.Errorf("deleting comment tree: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM thread_images WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting thread images: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting thread row: %w", err)
	}
	return nil
}
