package clustering

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// DefaultAlpha is the EMA smoothing factor used for centroid updates
// (§4.5: "α = 0.15 (tunable)").
const DefaultAlpha = 0.15

// Embedder computes a fixed-dim embedding vector for text. Satisfied by
// llmgateway.Gateway.Embed.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Engine owns the live cluster set. All mutation of the set itself (adds,
// removals) goes through Engine's lock; mutation of an individual
// cluster's fields goes through that cluster's own lock (§5: "Live cluster
// set: owned by the monitor; mutated only from its actor context").
type Engine struct {
	embedder            Embedder
	similarityThreshold float64
	mergeThreshold      float64
	alpha               float64

	mu       sync.RWMutex
	clusters map[string]*model.InvestigationCluster
}

// Options configures an Engine's thresholds.
type Options struct {
	SimilarityThreshold float64
	MergeThreshold      float64
	Alpha               float64
}

// DefaultOptions returns the spec's default thresholds.
func DefaultOptions() Options {
	return Options{SimilarityThreshold: 0.55, MergeThreshold: 0.80, Alpha: DefaultAlpha}
}

// New constructs an Engine.
func New(embedder Embedder, opts Options) *Engine {
	if opts.Alpha == 0 {
		opts.Alpha = DefaultAlpha
	}
	return &Engine{
		embedder:            embedder,
		similarityThreshold: opts.SimilarityThreshold,
		mergeThreshold:      opts.MergeThreshold,
		alpha:               opts.Alpha,
		clusters:            make(map[string]*model.InvestigationCluster),
	}
}

// embeddingText builds the text whose embedding represents a thread:
// title + " " + the first 400 characters of its body text (§4.5).
func embeddingText(t *model.Thread) string {
	text := t.Text
	if len(text) > 400 {
		text = text[:400]
	}
	return t.Title + " " + text
}

// Ingest computes the thread's embedding, matches it against every live
// cluster's centroid, and either folds it into the best match (if
// similarity >= the configured threshold) or seeds a new cluster. Returns
// the id of the cluster the thread ended up in.
func (e *Engine) Ingest(ctx context.Context, t *model.Thread, deltaScore, deltaComments int) (string, error) {
	embedding, err := e.embedder.Embed(ctx, embeddingText(t))
	if err != nil {
		return "", fmt.Errorf("embedding thread %s: %w", t.ID, err)
	}

	now := time.Now()

	e.mu.Lock()
	best, bestSim := e.bestMatchLocked(embedding)
	if best != nil && bestSim >= e.similarityThreshold {
		e.mu.Unlock()
		best.AddUpdate(t, deltaScore, deltaComments, embedding, e.alpha, now)
		return best.ID(), nil
	}

	id := newClusterID()
	cluster := model.NewInvestigationCluster(id, t, embedding, now)
	e.clusters[id] = cluster
	e.mu.Unlock()
	return id, nil
}

// bestMatchLocked must be called with e.mu held. It returns the cluster
// whose centroid is most similar to embedding, and that similarity.
func (e *Engine) bestMatchLocked(embedding []float64) (*model.InvestigationCluster, float64) {
	var best *model.InvestigationCluster
	bestSim := -1.0
	for _, c := range e.clusters {
		sim := CosineSimilarity(c.Centroid(), embedding)
		if sim > bestSim {
			best = c
			bestSim = sim
		}
	}
	return best, bestSim
}

// Get returns the cluster with id, or nil if it isn't live.
func (e *Engine) Get(id string) *model.InvestigationCluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.clusters[id]
}

// Snapshot returns every live cluster, in no particular order.
func (e *Engine) Snapshot() []*model.InvestigationCluster {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*model.InvestigationCluster, 0, len(e.clusters))
	for _, c := range e.clusters {
		out = append(out, c)
	}
	return out
}

// MergePass compares every live pair's centroid similarity and merges any
// pair at or above the merge threshold: the smaller (by ThreadCount) is
// absorbed into the larger, ties broken by whichever has the older
// LastActivity (§4.5). Returns the ids removed by this pass.
func (e *Engine) MergePass() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.clusters))
	for id := range e.clusters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	removed := make(map[string]struct{})
	var removedList []string

	for i := 0; i < len(ids); i++ {
		if _, gone := removed[ids[i]]; gone {
			continue
		}
		a := e.clusters[ids[i]]
		for j := i + 1; j < len(ids); j++ {
			if _, gone := removed[ids[j]]; gone {
				continue
			}
			b := e.clusters[ids[j]]
			sim := CosineSimilarity(a.Centroid(), b.Centroid())
			if sim < e.mergeThreshold {
				continue
			}

			survivor, absorbed := pickSurvivor(a, b)
			survivor.Absorb(absorbed)
			delete(e.clusters, absorbed.ID())
			removed[absorbed.ID()] = struct{}{}
			removedList = append(removedList, absorbed.ID())
			if absorbed == a {
				a = survivor
			}
		}
	}
	return removedList
}

// pickSurvivor returns (survivor, absorbed) for a merge: the larger
// cluster by ThreadCount survives; ties go to whichever has the older
// LastActivity (§4.5).
func pickSurvivor(a, b *model.InvestigationCluster) (survivor, absorbed *model.InvestigationCluster) {
	switch {
	case a.ThreadCount() > b.ThreadCount():
		return a, b
	case b.ThreadCount() > a.ThreadCount():
		return b, a
	case a.LastActivity().Before(b.LastActivity()):
		return a, b
	default:
		return b, a
	}
}

// ExpireStale removes clusters that have gone quiet: an unreported
// cluster whose LastActivity predates now-ttl, or a reported cluster
// whose most recent headline predates now-ttl (§4.5).
func (e *Engine) ExpireStale(ttl time.Duration, now time.Time) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var removed []string
	cutoff := now.Add(-ttl)
	for id, c := range e.clusters {
		if c.Reported() {
			headlineTime, ok := c.LastHeadlineTime()
			if ok && headlineTime.Before(cutoff) {
				delete(e.clusters, id)
				removed = append(removed, id)
			}
			continue
		}
		if c.LastActivity().Before(cutoff) {
			delete(e.clusters, id)
			removed = append(removed, id)
		}
	}
	return removed
}

func newClusterID() string {
	return uuid.NewString()[:8]
}
