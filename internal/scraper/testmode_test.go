package scraper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

type fakeRepo struct {
	saved []*model.Thread
}

func (f *fakeRepo) SaveThread(ctx context.Context, t *model.Thread) {
	f.saved = append(f.saved, t)
}

func (f *fakeRepo) SaveComment(ctx context.Context, c *model.Comment) error {
	return nil
}

func TestTestModeScraperEmptyOnFirstTwoCallsThenSyntheticOnThird(t *testing.T) {
	repo := &fakeRepo{}
	s := NewTestModeScraper(repo)
	ctx := context.Background()

	stats1, err := s.ScanSubreddit(ctx, "golang")
	require.NoError(t, err)
	assert.False(t, stats1.HasUpdates())

	stats2, err := s.ScanSubreddit(ctx, "golang")
	require.NoError(t, err)
	assert.False(t, stats2.HasUpdates())

	stats3, err := s.ScanSubreddit(ctx, "golang")
	require.NoError(t, err)
	assert.True(t, stats3.HasUpdates())
	assert.Equal(t, 2, stats3.NewThreads)
	assert.Len(t, repo.saved, 2)
}

func TestTestModeScraperFetchThreadContextHasTenComments(t *testing.T) {
	s := NewTestModeScraper(&fakeRepo{})
	actx, err := s.FetchThreadContext(context.Background(), "/r/golang/comments/abc")
	require.NoError(t, err)
	assert.Len(t, actx.CommentLines, 10)
}

func TestTestModeScraperPerBoardCounters(t *testing.T) {
	repo := &fakeRepo{}
	s := NewTestModeScraper(repo)
	ctx := context.Background()

	s.ScanSubreddit(ctx, "golang")
	s.ScanSubreddit(ctx, "golang")
	stats, err := s.ScanSubreddit(ctx, "rust")
	require.NoError(t, err)
	assert.False(t, stats.HasUpdates(), "different board should have its own call counter")
}
