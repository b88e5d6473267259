package scraper

import (
	"context"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// ThreadAnalysisContext is the flattened view of a thread fetchThreadContext
// hands to the clustering/report layers: title, selftext, an optional
// leading image, and the top comments rendered as "author: body" lines.
type ThreadAnalysisContext struct {
	Title        string
	SelfText     string
	ImageURL     string
	CommentLines []string
}

// Scraper pulls threads and comments from a board. The live implementation
// talks to a real Reddit-style JSON API; the test-mode implementation
// generates synthetic data deterministically (§4.3, §6 APP_MODE=TEST).
type Scraper interface {
	ScanSubreddit(ctx context.Context, board string) (ScrapeStats, error)
	ScanSubredditHot(ctx context.Context, board string) (ScrapeStats, error)
	UpdateThreadsBatch(ctx context.Context, threadIDs []string) (ScrapeStats, error)
	FetchThreadContext(ctx context.Context, permalink string) (ThreadAnalysisContext, error)
}

// Repository is the subset of the cache/storage layer the scraper writes
// new threads and comments through to.
type Repository interface {
	SaveThread(ctx context.Context, t *model.Thread)
	SaveComment(ctx context.Context, c *model.Comment) error
}
