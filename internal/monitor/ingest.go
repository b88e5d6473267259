package monitor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/eventbus"
)

// minIngestWorkers is the floor on the ingest worker pool size even when
// very few boards are configured (§5: "size = number of boards × 2 or 4
// minimum").
const minIngestWorkers = 4

func (m *Monitor) runIngestLoop(ctx context.Context) {
	defer m.wg.Done()

	interval := m.cfg.UpdateInterval()
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runIngestCycle(ctx)
		}
	}
}

func (m *Monitor) runCleanupLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.runCleanupCycle(ctx)
		}
	}
}

// runIngestCycle scrapes every configured board concurrently (bounded
// worker pool), then runs one merge pass and one TTL expiry over the live
// cluster set, then checks every unreported cluster's significance.
func (m *Monitor) runIngestCycle(ctx context.Context) {
	boards := m.cfg.Reddit.Subreddits
	if len(boards) == 0 {
		return
	}

	workers := len(boards) * 2
	if workers < minIngestWorkers {
		workers = minIngestWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, board := range boards {
		board := board
		g.Go(func() error {
			m.ingestBoard(gctx, board)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return
	}

	m.cluster.MergePass()
	m.cluster.ExpireStale(m.cfg.InvestigationTTL(), time.Now())
	m.checkSignificance(ctx)
}

// ingestBoard scrapes one board and feeds every thread whose score or
// comment count genuinely grew since its last fold through the clustering
// engine, passing the real delta rather than the thread's absolute totals
// (§4.5). A thread that reappears in the listing unchanged is skipped. A
// scrape failure is logged and skipped; it never fails the whole cycle
// (§7: "malformed remote payload... the cycle continues with the rest").
func (m *Monitor) ingestBoard(ctx context.Context, board string) {
	stats, err := m.scraper.ScanSubreddit(ctx, board)
	if err != nil {
		m.bus.Publish(eventbus.LogEvent{
			Message:  fmt.Sprintf("scrape %s failed: %v", board, err),
			Severity: eventbus.SeverityWarn,
		})
		return
	}
	if !stats.HasUpdates() {
		return
	}

	for id := range stats.Visited {
		thread, err := m.repo.GetThread(ctx, id)
		if err != nil || thread == nil {
			continue
		}
		deltaScore, deltaComments, changed := m.deltaFor(id, thread.Score, thread.CommentCount)
		if !changed {
			continue
		}
		if _, err := m.cluster.Ingest(ctx, thread, deltaScore, deltaComments); err != nil {
			m.bus.Publish(eventbus.LogEvent{
				Message:  fmt.Sprintf("clustering thread %s failed: %v", id, err),
				Severity: eventbus.SeverityWarn,
			})
		}
	}
}

func (m *Monitor) runCleanupCycle(ctx context.Context) {
	ttlSeconds := int64(m.cfg.DataRetention().Seconds())
	count, err := m.storage.CleanupOldThreads(ctx, ttlSeconds)
	if err != nil {
		m.bus.Publish(eventbus.LogEvent{
			Message:  fmt.Sprintf("cleanup failed: %v", err),
			Severity: eventbus.SeverityError,
		})
		return
	}
	m.bus.Publish(eventbus.LogEvent{
		Message:  fmt.Sprintf("cleanup removed %d stale threads", count),
		Severity: eventbus.SeverityInfo,
	})
}
