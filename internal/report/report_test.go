package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

type fakeCluster struct {
	id           string
	initialTitle string
	activeCount  int
	activeIDs    []string
	bestID       string
	bestScore    int
	cachedCtx    string
}

func (f fakeCluster) ID() string                { return f.id }
func (f fakeCluster) InitialTitle() string      { return f.initialTitle }
func (f fakeCluster) ActiveThreadCount() int    { return f.activeCount }
func (f fakeCluster) ActiveThreadIDs() []string { return f.activeIDs }
func (f fakeCluster) BestThread() (string, int) { return f.bestID, f.bestScore }
func (f fakeCluster) CachedContext() string     { return f.cachedCtx }

type fakeRepo struct {
	threads  map[string]*model.Thread
	comments map[string][]*model.Comment
}

func (r fakeRepo) GetThread(_ context.Context, id string) (*model.Thread, error) {
	t, ok := r.threads[id]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (r fakeRepo) GetCommentsForThread(_ context.Context, threadID string, limit int) ([]*model.Comment, error) {
	cs := r.comments[threadID]
	if limit > 0 && len(cs) > limit {
		cs = cs[:limit]
	}
	return cs, nil
}

func TestBuildReportDataIncludesCaseIDTitleAndThreadSource(t *testing.T) {
	repo := fakeRepo{
		threads: map[string]*model.Thread{
			"t1": {ID: "t1", Title: "DAX plunges"},
		},
		comments: map[string][]*model.Comment{
			"t1": {
				{ID: "c1", Author: "anon1", Body: "panic selling", Score: 42},
				{ID: "c2", Author: "anon2", Body: "buy the dip", Score: 10},
			},
		},
	}
	c := fakeCluster{id: "abcd1234", initialTitle: "DAX plunges", activeCount: 3, bestID: "t1", bestScore: 100}

	got := BuildReportData(context.Background(), repo, c)
	assert.Contains(t, got, "CASE ID: abcd1234")
	assert.Contains(t, got, "DAX plunges")
	assert.Contains(t, got, "Active Threads: 3")
	assert.Contains(t, got, "Title: DAX plunges")
	assert.Contains(t, got, "anon1 (Score: 42): panic selling")
}

func TestBuildReportDataCapsCommentsAtFifteen(t *testing.T) {
	comments := make([]*model.Comment, 0, 20)
	for i := 0; i < 20; i++ {
		comments = append(comments, &model.Comment{ID: string(rune('a' + i)), Author: "a", Body: "b", Score: i})
	}
	repo := fakeRepo{
		threads:  map[string]*model.Thread{"t1": {ID: "t1", Title: "x"}},
		comments: map[string][]*model.Comment{"t1": comments},
	}
	c := fakeCluster{bestID: "t1"}

	got := BuildReportData(context.Background(), repo, c)
	assert.Equal(t, maxSourceComments, strings.Count(got, "(Score:"))
}

func TestBuildReportDataHandlesNoBestThread(t *testing.T) {
	repo := fakeRepo{}
	c := fakeCluster{id: "x", initialTitle: "t", activeCount: 1}

	got := BuildReportData(context.Background(), repo, c)
	assert.Contains(t, got, "CASE ID: x")
	assert.NotContains(t, got, "THREAD SOURCE")
}

func TestBuildCombinedContextReturnsNewDataWhenNoCache(t *testing.T) {
	c := fakeCluster{}
	got := BuildCombinedContext(c, "fresh data")
	assert.Equal(t, "fresh data", got)
}

func TestBuildCombinedContextTruncatesCachedToLast4000Chars(t *testing.T) {
	c := fakeCluster{cachedCtx: strings.Repeat("x", 5000)}
	got := BuildCombinedContext(c, "new")

	idx := strings.Index(got, "=== UPDATE ===")
	require.True(t, idx >= 0)
	assert.Equal(t, maxCombinedContext, idx-1)
	assert.True(t, strings.HasSuffix(got, "new"))
}

func TestBuildHeadlinePromptNoTopicRestrictionWhenShowAll(t *testing.T) {
	got := BuildHeadlinePrompt(nil, "ctx", true, []string{"gold"})
	assert.Contains(t, got, "No topic restriction")
	assert.NotContains(t, got, jargonHint)
}

func TestBuildHeadlinePromptNoTopicRestrictionWhenTopicsEmpty(t *testing.T) {
	got := BuildHeadlinePrompt(nil, "ctx", false, nil)
	assert.Contains(t, got, "No topic restriction")
}

func TestBuildHeadlinePromptIncludesJargonHintWhenTopicFilterActive(t *testing.T) {
	got := BuildHeadlinePrompt(nil, "ctx", false, []string{"gold", "silver"})
	assert.Contains(t, got, "TOPIC FILTER: gold, silver")
	assert.Contains(t, got, jargonHint)
}

func TestBuildHeadlinePromptIncludesHistory(t *testing.T) {
	ts := time.Date(2026, 1, 1, 13, 37, 0, 0, time.UTC)
	history := []model.ReportEntry{{Headline: "market crash", Timestamp: ts}}
	got := BuildHeadlinePrompt(history, "ctx", true, nil)
	assert.Contains(t, got, "[13:37] market crash")
}

func TestIsAcceptedRequiresExactVerdictLine(t *testing.T) {
	assert.True(t, IsAccepted("VERDICT: ACCEPT\nREPORT: something happened"))
	assert.False(t, IsAccepted("VERDICT: REJECT\nREPORT: whatever"))
	assert.False(t, IsAccepted("the verdict is ACCEPT I guess"))
}

func TestExtractHeadlineReturnsTrimmedRest(t *testing.T) {
	assert.Equal(t, "market crash imminent", ExtractHeadline("VERDICT: ACCEPT\nREPORT:   market crash imminent  "))
}

func TestExtractHeadlineSentinelNegativeOneIsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractHeadline("REPORT: -1"))
}

func TestExtractHeadlineMissingLineIsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractHeadline("VERDICT: ACCEPT\nno report line here"))
}

func TestExtractHeadlineEmptyRestIsEmpty(t *testing.T) {
	assert.Equal(t, "", ExtractHeadline("REPORT: "))
}
