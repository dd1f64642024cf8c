package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/coder/hnsw"
)

// VectorIndexConfig tunes the HNSW graph.
type VectorIndexConfig struct {
	Dimensions int
	M          int
	EfSearch   int
}

// VectorHit is a candidate returned by VectorIndex.Search.
type VectorHit struct {
	FragmentID int64
	Distance   float32
	// Score is the cosine similarity implied by Distance.
	Score float32
}

// VectorIndexStats reports graph size and lazily deleted nodes.
type VectorIndexStats struct {
	Live       int
	GraphNodes int
	Orphans    int
}

// VectorIndex is an in-memory approximate nearest-neighbour index over
// fragment embeddings, rebuilt from the database at startup. It only
// produces candidates: callers rescore them against the stored vectors.
//
// Deletion is lazy. A removed node stays in the graph and is filtered out of
// results, which sidesteps coder/hnsw's trouble with deleting the last node.
type VectorIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[int64]
	config VectorIndexConfig
	live   map[int64]struct{}
	// added holds every key ever put in the graph, live or orphaned.
	added  map[int64]struct{}
	closed bool
}

// NewVectorIndex creates an empty index.
func NewVectorIndex(cfg VectorIndexConfig) *VectorIndex {
	if cfg.Dimensions == 0 {
		cfg.Dimensions = EmbeddingDimensions
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[int64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &VectorIndex{
		graph:  graph,
		config: cfg,
		live:   make(map[int64]struct{}),
		added:  make(map[int64]struct{}),
	}
}

// Add inserts the embedding of a fragment. Zero vectors are ignored. A
// fragment already in the graph is revived rather than re-added.
func (x *VectorIndex) Add(fragmentID int64, vec []float32) error {
	if len(vec) != x.config.Dimensions {
		return fmt.Errorf("vector for fragment %d has %d dimensions, want %d",
			fragmentID, len(vec), x.config.Dimensions)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}
	if _, ok := x.added[fragmentID]; ok {
		x.live[fragmentID] = struct{}{}
		return nil
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	if !normalizeInPlace(normalized) {
		return nil
	}

	x.graph.Add(hnsw.MakeNode(fragmentID, normalized))
	x.added[fragmentID] = struct{}{}
	x.live[fragmentID] = struct{}{}
	return nil
}

// Remove hides fragments from future searches.
func (x *VectorIndex) Remove(fragmentIDs ...int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, id := range fragmentIDs {
		delete(x.live, id)
	}
}

// Search returns up to k live candidates nearest to query.
func (x *VectorIndex) Search(query []float32, k int) ([]VectorHit, error) {
	if len(query) != x.config.Dimensions {
		return nil, fmt.Errorf("query has %d dimensions, want %d", len(query), x.config.Dimensions)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return nil, fmt.Errorf("vector index is closed")
	}
	if x.graph.Len() == 0 || k <= 0 {
		return nil, nil
	}

	normalized := make([]float32, len(query))
	copy(normalized, query)
	if !normalizeInPlace(normalized) {
		return nil, nil
	}

	// Over-fetch so orphans do not starve the result.
	fetch := k
	if orphans := len(x.added) - len(x.live); orphans > 0 {
		fetch += orphans
	}

	nodes := x.graph.Search(normalized, fetch)
	hits := make([]VectorHit, 0, k)
	for _, node := range nodes {
		if _, ok := x.live[node.Key]; !ok {
			continue
		}
		d := x.graph.Distance(normalized, node.Value)
		hits = append(hits, VectorHit{FragmentID: node.Key, Distance: d, Score: 1 - d})
		if len(hits) == k {
			break
		}
	}
	return hits, nil
}

// Contains reports whether a fragment is searchable.
func (x *VectorIndex) Contains(fragmentID int64) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	_, ok := x.live[fragmentID]
	return ok
}

// Len returns the number of live fragments.
func (x *VectorIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.live)
}

// Stats reports live and orphaned node counts.
func (x *VectorIndex) Stats() VectorIndexStats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return VectorIndexStats{}
	}
	nodes := x.graph.Len()
	return VectorIndexStats{Live: len(x.live), GraphNodes: nodes, Orphans: nodes - len(x.live)}
}

// Load adds every stored fragment embedding to the index and returns how
// many were added.
func (x *VectorIndex) Load(ctx context.Context, fragments *FragmentStore) (int, error) {
	n := 0
	err := fragments.Vectors(ctx, func(id int64, vec []float32) error {
		if len(vec) != x.config.Dimensions {
			slog.Warn("vector_dimension_skipped",
				slog.Int64("fragment_id", id),
				slog.Int("dimensions", len(vec)))
			return nil
		}
		if err := x.Add(id, vec); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("failed to load vector index: %w", err)
	}
	slog.Debug("vector_index_loaded", slog.Int("vectors", n))
	return n, nil
}

// Close releases the graph.
func (x *VectorIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	x.graph = nil
	return nil
}
