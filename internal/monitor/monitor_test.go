package monitor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/config"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/eventbus"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/llmgateway"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/scraper"
)

type fakeRepo struct {
	mu       sync.Mutex
	threads  map[string]*model.Thread
	warmedUp bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{threads: make(map[string]*model.Thread)}
}

func (r *fakeRepo) Warmup(ctx context.Context) error { r.warmedUp = true; return nil }
func (r *fakeRepo) Shutdown(ctx context.Context) error { return nil }

func (r *fakeRepo) SaveThread(ctx context.Context, t *model.Thread) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads[t.ID] = t
}

func (r *fakeRepo) SaveComment(ctx context.Context, c *model.Comment) error { return nil }

func (r *fakeRepo) GetThread(ctx context.Context, id string) (*model.Thread, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.threads[id], nil
}

func (r *fakeRepo) GetCommentsForThread(ctx context.Context, threadID string, limit int) ([]*model.Comment, error) {
	return nil, nil
}

type fakeStorage struct {
	count int
	err   error
}

func (s *fakeStorage) CleanupOldThreads(ctx context.Context, ttlSeconds int64) (int, error) {
	return s.count, s.err
}

type ingestCall struct {
	threadID      string
	deltaScore    int
	deltaComments int
}

type fakeClusterEngine struct {
	mu        sync.Mutex
	clusters  map[string]*model.InvestigationCluster
	ingested  []string
	ingestLog []ingestCall
}

func newFakeClusterEngine() *fakeClusterEngine {
	return &fakeClusterEngine{clusters: make(map[string]*model.InvestigationCluster)}
}

func (e *fakeClusterEngine) Ingest(ctx context.Context, t *model.Thread, deltaScore, deltaComments int) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ingested = append(e.ingested, t.ID)
	e.ingestLog = append(e.ingestLog, ingestCall{threadID: t.ID, deltaScore: deltaScore, deltaComments: deltaComments})
	return t.ID, nil
}

func (e *fakeClusterEngine) Get(id string) *model.InvestigationCluster {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clusters[id]
}

func (e *fakeClusterEngine) Snapshot() []*model.InvestigationCluster {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*model.InvestigationCluster, 0, len(e.clusters))
	for _, c := range e.clusters {
		out = append(out, c)
	}
	return out
}

func (e *fakeClusterEngine) MergePass() []string { return nil }

func (e *fakeClusterEngine) ExpireStale(ttl time.Duration, now time.Time) []string { return nil }

type fakeScraper struct {
	stats scraper.ScrapeStats
	err   error
}

func (s *fakeScraper) ScanSubreddit(ctx context.Context, board string) (scraper.ScrapeStats, error) {
	return s.stats, s.err
}

func (s *fakeScraper) ScanSubredditHot(ctx context.Context, board string) (scraper.ScrapeStats, error) {
	return s.stats, s.err
}

func (s *fakeScraper) UpdateThreadsBatch(ctx context.Context, ids []string) (scraper.ScrapeStats, error) {
	return scraper.NewScrapeStats(), nil
}

func (s *fakeScraper) FetchThreadContext(ctx context.Context, permalink string) (scraper.ThreadAnalysisContext, error) {
	return scraper.ThreadAnalysisContext{}, nil
}

type fakeStream struct {
	tokens []string
	idx    int
	full   string
}

func (s *fakeStream) Next() bool {
	if s.idx >= len(s.tokens) {
		return false
	}
	s.full += s.tokens[s.idx]
	s.idx++
	return true
}
func (s *fakeStream) Token() string    { return s.tokens[s.idx-1] }
func (s *fakeStream) Err() error       { return nil }
func (s *fakeStream) FullText() string { return s.full }
func (s *fakeStream) Cancel()          {}

type fakeGateway struct {
	response string
	err      error
}

func (g *fakeGateway) Chat(ctx context.Context, scopeID, message string) (llmgateway.Stream, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &fakeStream{tokens: splitIntoTokens(g.response)}, nil
}

func (g *fakeGateway) Translate(ctx context.Context, text, sourceLang, targetLang string) (llmgateway.Stream, error) {
	return nil, nil
}

func (g *fakeGateway) Vision(ctx context.Context, imageURL string) (string, error) { return "", nil }

func (g *fakeGateway) Embed(ctx context.Context, text string) ([]float64, error) { return nil, nil }

func splitIntoTokens(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func newTestMonitor(t *testing.T, repo *fakeRepo, storage *fakeStorage, scr *fakeScraper, cluster *fakeClusterEngine, gw *fakeGateway, bus *eventbus.Bus) *Monitor {
	t.Helper()
	cfg := config.Default()
	cfg.Reddit.Subreddits = []string{"wallstreetbetsGER"}
	return New(cfg, repo, storage, scr, cluster, gw, bus, logging.NewDevNullLogger())
}

func TestStartWarmsUpRepository(t *testing.T) {
	repo := newFakeRepo()
	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{stats: scraper.NewScrapeStats()}, newFakeClusterEngine(), &fakeGateway{}, eventbus.New(nil))

	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	assert.True(t, repo.warmedUp)
}

func TestIngestBoardFeedsVisitedThreadsToClusterEngine(t *testing.T) {
	repo := newFakeRepo()
	repo.threads["t1"] = &model.Thread{ID: "t1", Title: "a", Score: 5, CommentCount: 2}

	stats := scraper.NewScrapeStats()
	stats.NewThreads = 1
	stats.Visit("t1")

	cluster := newFakeClusterEngine()
	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{stats: stats}, cluster, &fakeGateway{}, eventbus.New(nil))

	m.ingestBoard(context.Background(), "wallstreetbetsGER")

	assert.Contains(t, cluster.ingested, "t1")
}

func TestIngestBoardSkipsUnchangedThreadOnRepeatedCycles(t *testing.T) {
	repo := newFakeRepo()
	repo.threads["t1"] = &model.Thread{ID: "t1", Title: "a", Score: 500, CommentCount: 300}

	stats := scraper.NewScrapeStats()
	stats.Visit("t1")

	cluster := newFakeClusterEngine()
	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{stats: stats}, cluster, &fakeGateway{}, eventbus.New(nil))

	// Same thread, unchanged score/comments, reappears across three
	// consecutive polling cycles (the "new" listing keeps it visible).
	m.ingestBoard(context.Background(), "wallstreetbetsGER")
	m.ingestBoard(context.Background(), "wallstreetbetsGER")
	m.ingestBoard(context.Background(), "wallstreetbetsGER")

	require.Len(t, cluster.ingestLog, 1)
	assert.Equal(t, 500, cluster.ingestLog[0].deltaScore)
	assert.Equal(t, 300, cluster.ingestLog[0].deltaComments)
}

func TestIngestBoardComputesGenuineDeltaOnGrowth(t *testing.T) {
	repo := newFakeRepo()
	repo.threads["t1"] = &model.Thread{ID: "t1", Title: "a", Score: 500, CommentCount: 300}

	stats := scraper.NewScrapeStats()
	stats.Visit("t1")

	cluster := newFakeClusterEngine()
	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{stats: stats}, cluster, &fakeGateway{}, eventbus.New(nil))

	m.ingestBoard(context.Background(), "wallstreetbetsGER")

	repo.threads["t1"] = &model.Thread{ID: "t1", Title: "a", Score: 530, CommentCount: 310}
	m.ingestBoard(context.Background(), "wallstreetbetsGER")

	require.Len(t, cluster.ingestLog, 2)
	assert.Equal(t, 500, cluster.ingestLog[0].deltaScore)
	assert.Equal(t, 30, cluster.ingestLog[1].deltaScore)
	assert.Equal(t, 10, cluster.ingestLog[1].deltaComments)
}

func TestIngestBoardSkipsOnScrapeError(t *testing.T) {
	repo := newFakeRepo()
	cluster := newFakeClusterEngine()
	var logged []eventbus.LogEvent
	bus := eventbus.New(nil)
	eventbus.Subscribe(bus, func(e eventbus.LogEvent) { logged = append(logged, e) })

	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{err: assertAnError{}}, cluster, &fakeGateway{}, bus)
	m.ingestBoard(context.Background(), "wallstreetbetsGER")

	assert.Empty(t, cluster.ingested)
	require.Len(t, logged, 1)
	assert.Equal(t, eventbus.SeverityWarn, logged[0].Severity)
}

type assertAnError struct{}

func (assertAnError) Error() string { return "scrape failed" }

func TestRunCleanupCyclePublishesCountAsInfo(t *testing.T) {
	repo := newFakeRepo()
	bus := eventbus.New(nil)
	var logged []eventbus.LogEvent
	eventbus.Subscribe(bus, func(e eventbus.LogEvent) { logged = append(logged, e) })

	m := newTestMonitor(t, repo, &fakeStorage{count: 3}, &fakeScraper{}, newFakeClusterEngine(), &fakeGateway{}, bus)
	m.runCleanupCycle(context.Background())

	require.Len(t, logged, 1)
	assert.Equal(t, eventbus.SeverityInfo, logged[0].Severity)
	assert.Contains(t, logged[0].Message, "3")
}

func TestCheckSignificanceGeneratesHeadlineAboveThreshold(t *testing.T) {
	repo := newFakeRepo()
	now := time.Now()
	thread := &model.Thread{ID: "t1", Title: "big news", Score: 500, CommentCount: 300}
	repo.threads["t1"] = thread

	c := model.NewInvestigationCluster("abcd1234", thread, []float64{1, 0}, now.Add(-2*time.Hour))
	cluster := newFakeClusterEngine()
	cluster.clusters["abcd1234"] = c

	var streamEvents []eventbus.Event
	bus := eventbus.New(nil)
	eventbus.Subscribe(bus, func(e eventbus.AgentStreamStartEvent) { streamEvents = append(streamEvents, e) })
	eventbus.Subscribe(bus, func(e eventbus.AgentStreamEndEvent) { streamEvents = append(streamEvents, e) })

	gw := &fakeGateway{response: "VERDICT: ACCEPT\nREPORT: markets in turmoil"}
	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{}, cluster, gw, bus)
	m.cfg.Reddit.SignificanceThreshold = 1.0

	m.checkSignificance(context.Background())

	assert.True(t, c.Reported())
	assert.Len(t, c.History(), 1)
	assert.Equal(t, "markets in turmoil", c.History()[0].Headline)
	require.Len(t, streamEvents, 2)
}

func TestCheckSignificanceSkipsAlreadyReportedClusters(t *testing.T) {
	now := time.Now()
	thread := &model.Thread{ID: "t1", Title: "a", Score: 500, CommentCount: 300}
	c := model.NewInvestigationCluster("abcd1234", thread, []float64{1, 0}, now)
	c.MarkReported("old headline", now)

	cluster := newFakeClusterEngine()
	cluster.clusters["abcd1234"] = c

	gw := &fakeGateway{response: "VERDICT: ACCEPT\nREPORT: should not run"}
	m := newTestMonitor(t, newFakeRepo(), &fakeStorage{}, &fakeScraper{}, cluster, gw, eventbus.New(nil))

	m.checkSignificance(context.Background())

	assert.Len(t, c.History(), 1)
	assert.Equal(t, "old headline", c.History()[0].Headline)
}

func TestCheckSignificanceDoesNotAcceptOnReject(t *testing.T) {
	now := time.Now()
	thread := &model.Thread{ID: "t1", Title: "a", Score: 500, CommentCount: 300}
	c := model.NewInvestigationCluster("abcd1234", thread, []float64{1, 0}, now)

	cluster := newFakeClusterEngine()
	cluster.clusters["abcd1234"] = c

	gw := &fakeGateway{response: "VERDICT: REJECT\nREPORT: -1"}
	m := newTestMonitor(t, newFakeRepo(), &fakeStorage{}, &fakeScraper{}, cluster, gw, eventbus.New(nil))
	m.cfg.Reddit.SignificanceThreshold = 1.0

	m.checkSignificance(context.Background())

	assert.False(t, c.Reported())
}

func TestGetInvestigationContextReturnsCachedContext(t *testing.T) {
	now := time.Now()
	thread := &model.Thread{ID: "t1", Title: "a"}
	c := model.NewInvestigationCluster("abcd1234", thread, []float64{1, 0}, now)
	c.CacheContext("cached dossier")

	cluster := newFakeClusterEngine()
	cluster.clusters["abcd1234"] = c

	m := newTestMonitor(t, newFakeRepo(), &fakeStorage{}, &fakeScraper{}, cluster, &fakeGateway{}, eventbus.New(nil))

	got, ok := m.GetInvestigationContext("abcd1234")
	assert.True(t, ok)
	assert.Equal(t, "cached dossier", got)
}

func TestGetInvestigationContextFalseForUnknownCluster(t *testing.T) {
	m := newTestMonitor(t, newFakeRepo(), &fakeStorage{}, &fakeScraper{}, newFakeClusterEngine(), &fakeGateway{}, eventbus.New(nil))

	_, ok := m.GetInvestigationContext("missing")
	assert.False(t, ok)
}

func TestHandleTriggerAnalysisIgnoresNonRefPrompts(t *testing.T) {
	m := newTestMonitor(t, newFakeRepo(), &fakeStorage{}, &fakeScraper{}, newFakeClusterEngine(), &fakeGateway{}, eventbus.New(nil))
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	m.handleTriggerAnalysis(eventbus.TriggerAgentAnalysisEvent{Prompt: "just chat with me"})
}

func TestHandleTriggerAnalysisResolvesByPermalink(t *testing.T) {
	repo := newFakeRepo()
	thread := &model.Thread{ID: "t1", Title: "a", Permalink: "/r/board/comments/t1"}
	repo.threads["t1"] = thread

	c := model.NewInvestigationCluster("abcd1234", thread, []float64{1, 0}, time.Now())
	cluster := newFakeClusterEngine()
	cluster.clusters["abcd1234"] = c

	gw := &fakeGateway{response: "VERDICT: ACCEPT\nREPORT: headline via permalink"}
	m := newTestMonitor(t, repo, &fakeStorage{}, &fakeScraper{}, cluster, gw, eventbus.New(nil))
	m.runCtx = context.Background() // avoid starting the long-running ingest/cleanup loops

	m.handleTriggerAnalysis(eventbus.TriggerAgentAnalysisEvent{Prompt: "analyze-ref:r/board/comments/t1/"})
	m.wg.Wait()

	assert.True(t, c.Reported())
	require.Len(t, c.History(), 1)
	assert.Equal(t, "headline via permalink", c.History()[0].Headline)
}

func TestHandleTriggerAnalysisLogsWarnForUnknownPermalink(t *testing.T) {
	bus := eventbus.New(nil)
	var logged []eventbus.LogEvent
	eventbus.Subscribe(bus, func(e eventbus.LogEvent) { logged = append(logged, e) })

	m := newTestMonitor(t, newFakeRepo(), &fakeStorage{}, &fakeScraper{}, newFakeClusterEngine(), &fakeGateway{}, bus)
	m.runCtx = context.Background()

	m.handleTriggerAnalysis(eventbus.TriggerAgentAnalysisEvent{Prompt: "analyze-ref:/r/board/comments/unknown"})

	require.Len(t, logged, 1)
	assert.Equal(t, eventbus.SeverityWarn, logged[0].Severity)
}
