// Package significance is the Significance Scorer (§4.6): a pure function
// mapping a cluster's accumulated activity to a SignificanceScore.
package significance

import (
	"fmt"
	"math"
	"time"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

// Cluster is the subset of model.InvestigationCluster the scorer reads.
// Declared as an interface so the scorer can be unit-tested against a
// fake without spinning up a real cluster.
type Cluster interface {
	ThreadCount() int
	TotalScore() int
	TotalComments() int
	FirstSeen() time.Time
	LastActivity() time.Time
	HistoryLen() int
}

// Weights controls how much each input contributes to the final score.
// Exposed so the monitor can tune sensitivity without touching the
// scoring logic itself.
type Weights struct {
	ThreadCount    float64
	TotalScore     float64
	TotalComments  float64
	RecencyBonus   float64
	HistoryPenalty float64
}

// DefaultWeights are the weights used unless the caller overrides them.
// A freshly seeded cluster has threadCount=1, so its thread-count term is
// zero; its seed thread's own score and comments still count in full. A
// seed with no score or comments scores only the recency bonus (at most
// RecencyBonus).
func DefaultWeights() Weights {
	return Weights{
		ThreadCount:    2.0,
		TotalScore:     0.05,
		TotalComments:  0.3,
		RecencyBonus:   5.0,
		HistoryPenalty: 1.5,
	}
}

// Compute scores a cluster at instant now. The combination is monotone in
// threadCount, totalScore, and totalComments by construction (every term
// contributing from those inputs is added, never subtracted), and the
// reasoning string is always non-empty (§4.6).
func Compute(c Cluster, weights Weights, now time.Time) model.SignificanceScore {
	threadCount := c.ThreadCount()
	totalScore := c.TotalScore()
	totalComments := c.TotalComments()

	base := weights.ThreadCount*float64(threadCount-1) +
		weights.TotalScore*float64(totalScore) +
		weights.TotalComments*float64(totalComments)

	recency := recencyBonus(c.LastActivity(), now, weights.RecencyBonus)
	penalty := weights.HistoryPenalty * float64(c.HistoryLen())

	score := base + recency - penalty
	reasoning := explain(threadCount, totalScore, totalComments, recency, penalty)

	return model.SignificanceScore{Score: score, Reasoning: reasoning}
}

// recencyBonus decays from bonus (activity just now) to 0 (activity an
// hour or longer ago), rewarding clusters that are still actively
// growing over ones that merely accumulated a lot once and went quiet.
func recencyBonus(lastActivity, now time.Time, bonus float64) float64 {
	age := now.Sub(lastActivity)
	if age < 0 {
		age = 0
	}
	decay := math.Max(0, 1-age.Hours())
	return bonus * decay
}

func explain(threadCount, totalScore, totalComments int, recency, penalty float64) string {
	return fmt.Sprintf(
		"%d linked threads, %d combined upvotes, %d combined comments (recency bonus %.1f, repeat-report penalty %.1f)",
		threadCount, totalScore, totalComments, recency, penalty,
	)
}
