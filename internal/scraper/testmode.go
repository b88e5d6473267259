package scraper

import (
	"context"
	"fmt"
	"sync"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// TestModeScraper is the synthetic stand-in bound when APP_MODE=TEST
// (§6). It returns empty stats on its first two calls per board and
// emits two synthetic threads on every third call, so a short-lived
// integration run still exercises the full ingest → cluster → headline
// pipeline without hitting the network.
type TestModeScraper struct {
	repo Repository

	mu    sync.Mutex
	calls map[string]int
}

// NewTestModeScraper constructs a TestModeScraper writing through repo.
func NewTestModeScraper(repo Repository) *TestModeScraper {
	return &TestModeScraper{repo: repo, calls: make(map[string]int)}
}

func (s *TestModeScraper) ScanSubreddit(ctx context.Context, board string) (ScrapeStats, error) {
	return s.scan(ctx, board)
}

func (s *TestModeScraper) ScanSubredditHot(ctx context.Context, board string) (ScrapeStats, error) {
	return s.scan(ctx, board)
}

func (s *TestModeScraper) scan(ctx context.Context, board string) (ScrapeStats, error) {
	stats := NewScrapeStats()
	if board == "" {
		return stats, nil
	}

	s.mu.Lock()
	s.calls[board]++
	n := s.calls[board]
	s.mu.Unlock()

	if n%3 != 0 {
		return stats, nil
	}

	for i := 0; i < 2; i++ {
		id := fmt.Sprintf("%s-synthetic-%d-%d", board, n, i)
		t := &model.Thread{
			ID:           id,
			Board:        board,
			Title:        fmt.Sprintf("Synthetic thread %d for %s", i, board),
			Author:       "synthetic-author",
			Text:         "synthetic body text generated by the test-mode scraper",
			Permalink:    fmt.Sprintf("/r/%s/comments/%s", board, id),
			CreatedUTC:   int64(n*1000 + i),
			Score:        10 + i,
			UpvoteRatio:  0.95,
			CommentCount: 0,
		}
		s.repo.SaveThread(ctx, t)
		stats.Visit(id)
		stats.NewThreads++
		stats.NewUpvotes += t.Score
	}
	return stats, nil
}

// UpdateThreadsBatch is a no-op in test mode — synthetic threads never
// change after creation.
func (s *TestModeScraper) UpdateThreadsBatch(ctx context.Context, threadIDs []string) (ScrapeStats, error) {
	return NewScrapeStats(), nil
}

// FetchThreadContext returns a synthetic context with 10 generated
// comments, regardless of the permalink requested.
func (s *TestModeScraper) FetchThreadContext(ctx context.Context, permalink string) (ThreadAnalysisContext, error) {
	actx := ThreadAnalysisContext{
		Title:    "Synthetic thread",
		SelfText: "synthetic body text generated by the test-mode scraper",
	}
	for i := 0; i < 10; i++ {
		actx.CommentLines = append(actx.CommentLines, fmt.Sprintf("synthetic-commenter-%d: synthetic comment body %d", i, i))
	}
	return actx, nil
}
