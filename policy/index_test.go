package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/mailflow/model"
)

func writeCorpus(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestBuild_EmptyCorpus(t *testing.T) {
	emb := model.NewMockEmbedder()

	idx, err := Build(context.Background(), t.TempDir(), emb)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())

	matches, err := idx.Retrieve(context.Background(), "", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, 0, emb.Calls(), "empty corpus must not embed the query")
}

func TestBuild_MissingDirectoryIsEmptyCorpus(t *testing.T) {
	idx, err := Build(context.Background(), filepath.Join(t.TempDir(), "nope"), model.NewMockEmbedder())
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestRetrieve_RanksBySimilarity(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"escalation.md": "# Escalation\nEscalate account outages to the on-call lead.",
		"tone.md":       "# Tone\nKeep replies under three sentences.",
	})

	emb := model.NewMockEmbedder()
	emb.SetVector("# Escalation\nEscalate account outages to the on-call lead.", []float64{1, 0, 0})
	emb.SetVector("# Tone\nKeep replies under three sentences.", []float64{0, 1, 0})
	emb.SetVector("outage help", []float64{0.9, 0.1, 0})

	idx, err := Build(context.Background(), dir, emb)
	require.NoError(t, err)
	require.Equal(t, 2, idx.Len())

	matches, err := idx.Retrieve(context.Background(), "outage help", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "escalation.md", matches[0].Chunk.DocID)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestRetrieve_TieBreakByDocumentOrder(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"a.md": "alpha policy",
		"b.md": "beta policy",
	})

	emb := model.NewMockEmbedder()
	// Identical vectors: scores tie, document order (a before b) must win.
	emb.SetVector("alpha policy", []float64{1, 1})
	emb.SetVector("beta policy", []float64{1, 1})
	emb.SetVector("anything", []float64{1, 1})

	idx, err := Build(context.Background(), dir, emb)
	require.NoError(t, err)

	matches, err := idx.Retrieve(context.Background(), "anything", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "a.md", matches[0].Chunk.DocID)
	assert.Equal(t, "b.md", matches[1].Chunk.DocID)
}

func TestRetrieve_TopKClamped(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.md": "only document"})

	idx, err := Build(context.Background(), dir, model.NewMockEmbedder())
	require.NoError(t, err)

	matches, err := idx.Retrieve(context.Background(), "query", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestBuild_CacheSkipsUnchangedFiles(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.md": "cached policy text"})
	cachePath := filepath.Join(t.TempDir(), "embeds.json")

	emb := model.NewMockEmbedder()
	_, err := Build(context.Background(), dir, emb, func(o *Options) { o.CachePath = cachePath })
	require.NoError(t, err)
	firstCalls := emb.Calls()
	require.Greater(t, firstCalls, 0)

	// Second build with a fresh embedder: cache hit, no embed calls.
	emb2 := model.NewMockEmbedder()
	idx, err := Build(context.Background(), dir, emb2, func(o *Options) { o.CachePath = cachePath })
	require.NoError(t, err)
	assert.Equal(t, 0, emb2.Calls())
	assert.Equal(t, 1, idx.Len())

	// Changing the file invalidates the cache entry.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("updated policy text"), 0o644))
	emb3 := model.NewMockEmbedder()
	_, err = Build(context.Background(), dir, emb3, func(o *Options) { o.CachePath = cachePath })
	require.NoError(t, err)
	assert.Greater(t, emb3.Calls(), 0)
}

func TestBuild_EmbedFailure(t *testing.T) {
	dir := writeCorpus(t, map[string]string{"a.md": "text"})
	emb := model.NewMockEmbedder()
	emb.FailWith(assert.AnError)

	_, err := Build(context.Background(), dir, emb)
	assert.Error(t, err)
}
