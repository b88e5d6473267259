// Package monitor is the Passive Monitor Service (§4.8): the orchestrator
// tying scraper, clustering, significance, and report generation together
// around the event bus, on a small set of long-lived recurring cycles.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/config"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/eventbus"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/llmgateway"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/scraper"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/significance"
)

// shutdownGrace bounds how long Stop waits for in-flight cycles to finish
// before abandoning them (§5).
const shutdownGrace = 10 * time.Second

// cleanupInterval is fixed by §4.8 ("every 10 minutes"), unlike the ingest
// interval which is configurable.
const cleanupInterval = 10 * time.Minute

// Repository is the subset of the Repository Cache the monitor reads and
// writes through. Satisfied by *cache.Cache.
type Repository interface {
	Warmup(ctx context.Context) error
	Shutdown(ctx context.Context) error
	SaveThread(ctx context.Context, t *model.Thread)
	SaveComment(ctx context.Context, c *model.Comment) error
	GetThread(ctx context.Context, id string) (*model.Thread, error)
	GetCommentsForThread(ctx context.Context, threadID string, limit int) ([]*model.Comment, error)
}

// Storage is the subset of the Storage Engine the monitor drives its
// cleanup cycle against directly, bypassing the cache. Satisfied by
// *sqlite.Store.
type Storage interface {
	CleanupOldThreads(ctx context.Context, ttlSeconds int64) (int, error)
}

// ClusterEngine is the live cluster set the monitor drives each ingest
// cycle. Satisfied by *clustering.Engine.
type ClusterEngine interface {
	Ingest(ctx context.Context, t *model.Thread, deltaScore, deltaComments int) (string, error)
	Get(id string) *model.InvestigationCluster
	Snapshot() []*model.InvestigationCluster
	MergePass() []string
	ExpireStale(ttl time.Duration, now time.Time) []string
}

// Monitor is the Passive Monitor Service.
type Monitor struct {
	cfg     config.Config
	repo    Repository
	storage Storage
	scraper scraper.Scraper
	cluster ClusterEngine
	gateway llmgateway.Gateway
	bus     *eventbus.Bus
	logger  logging.Logger
	weights significance.Weights

	mu       sync.Mutex
	runCtx   context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	unsubIDs []int

	countsMu sync.Mutex
	counts   map[string]threadCounts
}

// threadCounts is the last score/comment-count a thread was folded into its
// cluster with, so the next ingest cycle can compute a genuine delta
// instead of re-feeding the thread's absolute totals (§4.5).
type threadCounts struct {
	score    int
	comments int
}

// New constructs a Monitor. Weights uses significance.DefaultWeights()
// unless overridden by the caller before Start.
func New(
	cfg config.Config,
	repo Repository,
	storage Storage,
	scr scraper.Scraper,
	cluster ClusterEngine,
	gateway llmgateway.Gateway,
	bus *eventbus.Bus,
	logger logging.Logger,
) *Monitor {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &Monitor{
		cfg:     cfg,
		repo:    repo,
		storage: storage,
		scraper: scr,
		cluster: cluster,
		gateway: gateway,
		bus:     bus,
		logger:  logger,
		weights: significance.DefaultWeights(),
		counts:  make(map[string]threadCounts),
	}
}

// deltaFor returns how much score/comments has grown for thread id since
// the last time it was folded into its cluster, and whether it changed at
// all. The very first sighting of an id reports its full current totals as
// the delta (§4.5: a brand-new thread seeds or joins a cluster at its
// observed score/comment count).
func (m *Monitor) deltaFor(id string, score, comments int) (deltaScore, deltaComments int, changed bool) {
	m.countsMu.Lock()
	defer m.countsMu.Unlock()

	prev, seen := m.counts[id]
	if !seen {
		m.counts[id] = threadCounts{score: score, comments: comments}
		return score, comments, true
	}

	deltaScore = score - prev.score
	deltaComments = comments - prev.comments
	if deltaScore == 0 && deltaComments == 0 {
		return 0, 0, false
	}
	m.counts[id] = threadCounts{score: score, comments: comments}
	return deltaScore, deltaComments, true
}

// Start loads persisted threads, warms the repository, subscribes to the
// event bus, and schedules the ingest and cleanup cycles. It returns once
// startup has completed; the cycles themselves run in the background
// until Stop is called.
func (m *Monitor) Start(ctx context.Context) error {
	if err := m.repo.Warmup(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.runCtx = runCtx
	m.cancel = cancel
	m.unsubIDs = append(m.unsubIDs, eventbus.Subscribe(m.bus, m.handleTriggerAnalysis))
	m.mu.Unlock()

	m.wg.Add(2)
	go m.runIngestLoop(runCtx)
	go m.runCleanupLoop(runCtx)

	m.bus.Publish(eventbus.NewLogEvent("monitor started"))
	return nil
}

// Stop cancels the running cycles and waits up to shutdownGrace for them
// to finish, then returns regardless (§5: "bounded grace period...then
// abandoned").
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	for _, id := range m.unsubIDs {
		m.bus.Unsubscribe(id)
	}
	m.unsubIDs = nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		m.logger.Warn("monitor shutdown grace period elapsed, abandoning in-flight work")
	}
}

// GetInvestigationContext returns the cached combined context for a live
// cluster, or ("", false) if the cluster has expired or never cached one
// (§4.8).
func (m *Monitor) GetInvestigationContext(id string) (string, bool) {
	c := m.cluster.Get(id)
	if c == nil {
		return "", false
	}
	ctx := c.CachedContext()
	if ctx == "" {
		return "", false
	}
	return ctx, true
}
