package database

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	EmbeddingCount int64     `json:"embedding_count"`
	BuildTime      time.Time `json:"build_time"`
	Version        int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps an HNSW graph for in-memory image embedding search,
// keyed by asset ID.
type HNSWIndex struct {
	graph   *hnsw.Graph[string]
	idToEmb map[string]*StoredEmbedding
	mu      sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToEmb: make(map[string]*StoredEmbedding),
	}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromEmbeddings builds the index from a slice of embeddings.
func (h *HNSWIndex) BuildFromEmbeddings(embeddings []StoredEmbedding) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(embeddings) == 0 {
		h.graph = nil
		h.idToEmb = make(map[string]*StoredEmbedding)
		return nil
	}

	g := newGraph()
	h.idToEmb = make(map[string]*StoredEmbedding, len(embeddings))

	for i := range embeddings {
		emb := &embeddings[i]
		if len(emb.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(emb.AssetID, emb.Embedding))
		h.idToEmb[emb.AssetID] = emb
	}

	h.graph = g
	return nil
}

// Add inserts or replaces a single embedding in the index.
func (h *HNSWIndex) Add(emb *StoredEmbedding) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(emb.Embedding) == 0 {
		return
	}
	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(emb.AssetID, emb.Embedding))
	h.idToEmb[emb.AssetID] = emb
}

// Delete removes an embedding from the index.
// HNSW does not support true deletion; removing the map entry hides the
// node from results since searches filter through the lookup.
func (h *HNSWIndex) Delete(assetID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.idToEmb, assetID)
}

// Search finds the k nearest neighbors to the query embedding.
// Returns asset IDs and their cosine distances.
func (h *HNSWIndex) Search(query []float32, k int) ([]string, []float64, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k)

	ids := make([]string, 0, len(neighbors))
	distances := make([]float64, 0, len(neighbors))
	for _, n := range neighbors {
		if _, ok := h.idToEmb[n.Key]; !ok {
			continue // deleted
		}
		ids = append(ids, n.Key)
		distances = append(distances, CosineDistance(query, n.Value))
	}

	return ids, distances, nil
}

// SearchWithDistance finds up to k neighbors within maxDistance.
func (h *HNSWIndex) SearchWithDistance(query []float32, k int, maxDistance float64) ([]string, []float64, error) {
	ids, distances, err := h.Search(query, k)
	if err != nil {
		return nil, nil, err
	}

	outIDs := make([]string, 0, len(ids))
	outDist := make([]float64, 0, len(ids))
	for i, id := range ids {
		if distances[i] >= maxDistance {
			continue
		}
		outIDs = append(outIDs, id)
		outDist = append(outDist, distances[i])
	}
	return outIDs, outDist, nil
}

// GetEmbedding returns the stored embedding for an asset ID, nil if absent.
func (h *HNSWIndex) GetEmbedding(assetID string) *StoredEmbedding {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.idToEmb[assetID]
}

// Count returns the number of indexed embeddings.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToEmb)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil || len(h.idToEmb) == 0
}

// SaveWithMetadata persists the graph, the embedding map and a metadata
// sidecar used for staleness detection on the next startup.
func (h *HNSWIndex) SaveWithMetadata(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Best-effort cleanup of stale files when the index is empty.
		_ = os.Remove(path)
		_ = os.Remove(path + ".embeddings")
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()
	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	ef, err := os.Create(path + ".embeddings")
	if err != nil {
		return fmt.Errorf("failed to create embeddings file: %w", err)
	}
	defer ef.Close()
	if err := gob.NewEncoder(ef).Encode(h.idToEmb); err != nil {
		return fmt.Errorf("encoding embeddings map: %w", err)
	}

	metadata.BuildTime = time.Now()
	metadata.Version = hnswMetadataVersion
	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaBytes, 0o600); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}

	return nil
}

// LoadWithMetadata loads a previously saved graph and embedding map.
func (h *HNSWIndex) LoadWithMetadata(path string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening HNSW index file: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(bufio.NewReader(f)); err != nil {
		return fmt.Errorf("importing HNSW graph: %w", err)
	}

	ef, err := os.Open(path + ".embeddings")
	if err != nil {
		return fmt.Errorf("opening embeddings file: %w", err)
	}
	defer ef.Close()

	idToEmb := make(map[string]*StoredEmbedding)
	if err := gob.NewDecoder(ef).Decode(&idToEmb); err != nil {
		return fmt.Errorf("decoding embeddings map: %w", err)
	}

	h.graph = g
	h.idToEmb = idToEmb
	return nil
}

// LoadMetadata reads the metadata sidecar for a saved index.
func LoadHNSWMetadata(path string) (*HNSWIndexMetadata, error) {
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}

	var meta HNSWIndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling index metadata: %w", err)
	}
	if meta.Version != hnswMetadataVersion {
		return nil, fmt.Errorf("unsupported index metadata version %d", meta.Version)
	}
	return &meta, nil
}
