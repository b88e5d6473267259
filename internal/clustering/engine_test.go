package clustering

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/model"
)

type fakeEmbedder struct {
	vectors map[string][]float64
	fixed   []float64
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fixed, nil
}

func TestIngestCreatesNewClusterWhenNoSimilarMatch(t *testing.T) {
	embedder := &fakeEmbedder{fixed: []float64{1, 0, 0}}
	e := New(embedder, DefaultOptions())

	t1 := &model.Thread{ID: "t1", Title: "DAX crashes"}
	id, err := e.Ingest(context.Background(), t1, t1.Score, t1.CommentCount)
	require.NoError(t, err)

	c := e.Get(id)
	require.NotNil(t, c)
	assert.Equal(t, 1, c.ThreadCount())
}

func TestIngestJoinsExistingClusterAboveSimilarityThreshold(t *testing.T) {
	embedder := &fakeEmbedder{fixed: []float64{1, 0, 0}}
	e := New(embedder, DefaultOptions())

	t1 := &model.Thread{ID: "t1", Title: "DAX crashes", Score: 10}
	id1, err := e.Ingest(context.Background(), t1, t1.Score, t1.CommentCount)
	require.NoError(t, err)

	t2 := &model.Thread{ID: "t2", Title: "DAX crashes again", Score: 20}
	id2, err := e.Ingest(context.Background(), t2, t2.Score, t2.CommentCount)
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "near-identical embedding should join the same cluster")
	assert.Equal(t, 2, e.Get(id1).ActiveThreadCount())
}

func TestIngestSeparatesDissimilarThreadsIntoDifferentClusters(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float64{
		"DAX crashes ":  {1, 0, 0},
		"Bitcoin pumps ": {0, 1, 0},
	}}
	e := New(embedder, DefaultOptions())

	t1 := &model.Thread{ID: "t1", Title: "DAX crashes"}
	id1, err := e.Ingest(context.Background(), t1, 0, 0)
	require.NoError(t, err)

	t2 := &model.Thread{ID: "t2", Title: "Bitcoin pumps"}
	id2, err := e.Ingest(context.Background(), t2, 0, 0)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Len(t, e.Snapshot(), 2)
}

func TestMergePassAbsorbsSmallerIntoLargerAboveMergeThreshold(t *testing.T) {
	embedder := &fakeEmbedder{fixed: []float64{1, 0, 0}}
	e := New(embedder, Options{SimilarityThreshold: 1.1, MergeThreshold: 0.8, Alpha: DefaultAlpha})

	t1 := &model.Thread{ID: "t1", Title: "a", Score: 5}
	id1, _ := e.Ingest(context.Background(), t1, 0, 0)
	t2 := &model.Thread{ID: "t2", Title: "b", Score: 5}
	id2, _ := e.Ingest(context.Background(), t2, 0, 0)
	t3 := &model.Thread{ID: "t3", Title: "c", Score: 5}
	e.Get(id2).AddUpdate(t3, 5, 0, []float64{1, 0, 0}, DefaultAlpha, time.Now())

	removed := e.MergePass()
	require.Len(t, removed, 1)
	assert.Len(t, e.Snapshot(), 1)

	survivorID := id1
	if removed[0] == id1 {
		survivorID = id2
	}
	assert.Equal(t, 3, e.Get(survivorID).ThreadCount())
}

func TestExpireStaleRemovesUnreportedClusterPastTTL(t *testing.T) {
	embedder := &fakeEmbedder{fixed: []float64{1, 0, 0}}
	e := New(embedder, DefaultOptions())

	t1 := &model.Thread{ID: "t1", Title: "a"}
	id, _ := e.Ingest(context.Background(), t1, 0, 0)

	now := time.Now()
	removed := e.ExpireStale(time.Hour, now.Add(2*time.Hour))
	assert.Contains(t, removed, id)
	assert.Nil(t, e.Get(id))
}

func TestExpireStaleKeepsReportedClusterUntilHeadlineStale(t *testing.T) {
	embedder := &fakeEmbedder{fixed: []float64{1, 0, 0}}
	e := New(embedder, DefaultOptions())

	t1 := &model.Thread{ID: "t1", Title: "a"}
	id, _ := e.Ingest(context.Background(), t1, 0, 0)
	c := e.Get(id)
	c.MarkReported("headline", time.Now())

	removed := e.ExpireStale(time.Hour, time.Now().Add(10*time.Minute))
	assert.NotContains(t, removed, id)
	assert.NotNil(t, e.Get(id))
}
