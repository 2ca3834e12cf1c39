package policy

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/mailflow/logging"
	"github.com/hupe1980/mailflow/model"
)

// Options configure index construction.
type Options struct {
	// CachePath is the persistent embed cache file; empty disables caching.
	CachePath string
	// Logger receives build diagnostics.
	Logger logging.Logger
}

// Index is the nearest-neighbor index over embedded policy chunks. It is
// rebuilt wholesale by Build and immutable afterwards, so concurrent
// Retrieve calls need no locking.
type Index struct {
	embedder model.Embedder
	chunks   []Chunk
	logger   logging.Logger
}

// Build loads every file in dir (one logical document per file), chunks and
// embeds it, and returns the ready index. Unchanged files whose embeddings
// are present in the cache are not re-embedded.
func Build(ctx context.Context, dir string, embedder model.Embedder, optFns ...func(o *Options)) (*Index, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	idx := &Index{embedder: embedder, logger: opts.Logger}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			// Missing corpus directory is an empty corpus, not a failure.
			opts.Logger.Warn("policy directory not found, corpus is empty", "dir", dir)
			return idx, nil
		}
		return nil, fmt.Errorf("read policy directory %s: %w", dir, err)
	}

	cache := newEmbedCache(opts.CachePath)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read policy document %s: %w", name, err)
		}

		chunks := splitDocument(name, string(body))
		if len(chunks) == 0 {
			continue
		}

		hash := contentHash(string(body))
		if vecs, ok := cache.lookup(hash, len(chunks)); ok {
			for i := range chunks {
				chunks[i].Embedding = vecs[i]
			}
			opts.Logger.Debug("policy document unchanged, embeddings from cache", "doc", name, "chunks", len(chunks))
		} else {
			vecs := make([][]float64, len(chunks))
			for i := range chunks {
				vec, err := embedder.Embed(ctx, chunks[i].Text)
				if err != nil {
					return nil, fmt.Errorf("embed policy chunk %s[%d]: %w", name, i, err)
				}
				chunks[i].Embedding = vec
				vecs[i] = vec
			}
			cache.store(hash, vecs)
			opts.Logger.Info("policy document embedded", "doc", name, "chunks", len(chunks))
		}

		idx.chunks = append(idx.chunks, chunks...)
	}

	if err := cache.flush(); err != nil {
		opts.Logger.Warn("embed cache not persisted", "error", err)
	}

	opts.Logger.Info("policy index built", "documents", len(names), "chunks", len(idx.chunks))
	return idx, nil
}

// Len reports the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.chunks) }

// Retrieve returns the topK chunks most similar to queryText, in descending
// cosine-similarity order, ties broken by original document order. An empty
// corpus yields an empty result, never an error; the query is not embedded
// in that case.
func (idx *Index) Retrieve(ctx context.Context, queryText string, topK int) ([]Match, error) {
	if len(idx.chunks) == 0 || topK <= 0 {
		return []Match{}, nil
	}

	qvec, err := idx.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := make([]Match, 0, len(idx.chunks))
	for _, ch := range idx.chunks {
		matches = append(matches, Match{Chunk: ch, Score: cosine(qvec, ch.Embedding)})
	}

	// Stable sort keeps document order for equal scores; chunks were
	// appended in document order at build time.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })

	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
