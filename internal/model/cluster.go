package model

import (
	"sync"
	"time"
)

// maxReportHistory bounds the rolling headline history kept per cluster.
const maxReportHistory = 5

// ReportEntry is one accepted headline recorded against a cluster, with the
// wall-clock time it was produced.
type ReportEntry struct {
	Headline  string
	Timestamp time.Time
}

// InvestigationCluster is a live grouping of thematically related threads,
// identified by a stable 8-character opaque id. All mutation happens
// through AddUpdate/Absorb/MarkReported, which serialize themselves with an
// internal lock so a cluster can be safely handed to one actor at a time
// without the caller needing its own synchronization (§5: "addUpdate calls
// are serialized... by holding a per-cluster lock").
type InvestigationCluster struct {
	mu sync.Mutex

	id              string
	initialTitle    string
	activeThreadIDs map[string]struct{}
	bestThreadID    string
	bestThreadScore int
	threadCount     int
	totalScore      int
	totalComments   int
	centroid        []float64
	firstSeen       time.Time
	lastActivity    time.Time
	history         []ReportEntry
	reported        bool
	cachedContext   string
}

// NewInvestigationCluster seeds a cluster from the thread that failed to
// match any existing centroid.
func NewInvestigationCluster(id string, thread *Thread, embedding []float64, now time.Time) *InvestigationCluster {
	centroid := make([]float64, len(embedding))
	copy(centroid, embedding)
	return &InvestigationCluster{
		id:              id,
		initialTitle:    thread.Title,
		activeThreadIDs: map[string]struct{}{thread.ID: {}},
		bestThreadID:    thread.ID,
		bestThreadScore: thread.Score,
		threadCount:     1,
		totalScore:      max(thread.Score, 0),
		totalComments:   max(thread.CommentCount, 0),
		centroid:        centroid,
		firstSeen:       now,
		lastActivity:    now,
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ID returns the cluster's stable opaque id.
func (c *InvestigationCluster) ID() string { return c.id }

// InitialTitle returns the title of the thread the cluster was seeded with.
func (c *InvestigationCluster) InitialTitle() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialTitle
}

// Centroid returns a copy of the current centroid vector.
func (c *InvestigationCluster) Centroid() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.centroid))
	copy(out, c.centroid)
	return out
}

// AddUpdate folds a new or re-observed thread into the cluster: EMA-shifts
// the centroid toward embedding by alpha, accumulates totals, and refreshes
// last-activity and best-thread bookkeeping per §4.5.
func (c *InvestigationCluster) AddUpdate(thread *Thread, deltaScore, deltaComments int, embedding []float64, alpha float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, alreadyActive := c.activeThreadIDs[thread.ID]; !alreadyActive {
		c.activeThreadIDs[thread.ID] = struct{}{}
		c.threadCount++
	}
	c.totalScore += max(deltaScore, 0)
	c.totalComments += max(deltaComments, 0)

	if deltaComments > 0 || deltaScore > 0 {
		c.lastActivity = now
	}
	if thread.Score > c.bestThreadScore {
		c.bestThreadID = thread.ID
		c.bestThreadScore = thread.Score
	}

	if len(c.centroid) == 0 {
		c.centroid = append([]float64(nil), embedding...)
		return
	}
	for i := range c.centroid {
		if i >= len(embedding) {
			break
		}
		c.centroid[i] = (1-alpha)*c.centroid[i] + alpha*embedding[i]
	}
}

// Absorb merges other into c: other's threads, totals, and best-thread are
// folded in, and the centroid becomes the size-weighted mean of both. other
// itself is not modified (the caller is responsible for removing it from
// the live set).
func (c *InvestigationCluster) Absorb(other *InvestigationCluster) {
	c.mu.Lock()
	defer c.mu.Unlock()
	other.mu.Lock()
	defer other.mu.Unlock()

	cWeight := float64(c.threadCount)
	oWeight := float64(other.threadCount)
	totalWeight := cWeight + oWeight
	if totalWeight > 0 && len(c.centroid) > 0 && len(other.centroid) == len(c.centroid) {
		merged := make([]float64, len(c.centroid))
		for i := range merged {
			merged[i] = (c.centroid[i]*cWeight + other.centroid[i]*oWeight) / totalWeight
		}
		c.centroid = merged
	}

	for id := range other.activeThreadIDs {
		c.activeThreadIDs[id] = struct{}{}
	}
	c.threadCount += other.threadCount
	c.totalScore += other.totalScore
	c.totalComments += other.totalComments

	if other.lastActivity.After(c.lastActivity) {
		c.lastActivity = other.lastActivity
	}
	if other.bestThreadScore > c.bestThreadScore {
		c.bestThreadID = other.bestThreadID
		c.bestThreadScore = other.bestThreadScore
	}
}

// ThreadCount returns the number of threads folded into the cluster:
// AddUpdate counts each new thread id once, and Absorb adds the absorbed
// cluster's ThreadCount without checking for ids the two share.
func (c *InvestigationCluster) ThreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threadCount
}

// ActiveThreadCount returns len(activeThreadIDs), i.e. the number of
// distinct threads currently attributed to the cluster.
func (c *InvestigationCluster) ActiveThreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.activeThreadIDs)
}

// ActiveThreadIDs returns a snapshot slice of the distinct thread ids.
func (c *InvestigationCluster) ActiveThreadIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.activeThreadIDs))
	for id := range c.activeThreadIDs {
		out = append(out, id)
	}
	return out
}

// BestThread returns the id and peak score of the highest-scoring member
// ever seen by the cluster.
func (c *InvestigationCluster) BestThread() (id string, score int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bestThreadID, c.bestThreadScore
}

// TotalScore returns the cumulative positive score delta folded in.
func (c *InvestigationCluster) TotalScore() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalScore
}

// TotalComments returns the cumulative positive comment delta folded in.
func (c *InvestigationCluster) TotalComments() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalComments
}

// LastActivity returns the latest of: the cluster's creation, the most
// recent update that carried a positive score or comment delta, the most
// recent MarkReported call, and an absorbed cluster's LastActivity.
func (c *InvestigationCluster) LastActivity() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActivity
}

// FirstSeen returns the time the cluster was created.
func (c *InvestigationCluster) FirstSeen() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstSeen
}

// Reported reports whether the cluster has ever had an accepted headline.
func (c *InvestigationCluster) Reported() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reported
}

// History returns a copy of the rolling headline history, newest first.
func (c *InvestigationCluster) History() []ReportEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ReportEntry, len(c.history))
	copy(out, c.history)
	return out
}

// HistoryLen reports how many prior headlines have been accepted, used by
// the significance scorer as an input.
func (c *InvestigationCluster) HistoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// MarkReported sets the reported flag, prepends headline to the rolling
// history capped at maxReportHistory entries, and records the timestamp as
// the new last-activity floor used for reported-cluster TTL (§4.5).
func (c *InvestigationCluster) MarkReported(headline string, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reported = true
	c.history = append([]ReportEntry{{Headline: headline, Timestamp: now}}, c.history...)
	if len(c.history) > maxReportHistory {
		c.history = c.history[:maxReportHistory]
	}
	c.lastActivity = now
}

// CacheContext stores the combined report context for later reuse by
// on-demand re-analysis.
func (c *InvestigationCluster) CacheContext(ctx string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedContext = ctx
}

// CachedContext returns the cached combined report context, if any.
func (c *InvestigationCluster) CachedContext() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cachedContext
}

// LastHeadlineTime returns the timestamp of the most recent accepted
// headline, used to apply the TTL from last-headline rather than
// last-activity for already-reported clusters.
func (c *InvestigationCluster) LastHeadlineTime() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.history) == 0 {
		return time.Time{}, false
	}
	return c.history[0].Timestamp, true
}
