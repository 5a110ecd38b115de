// Package vectorstore implements indiseek's per-repo approximate-nearest-
// neighbor table over chunk embeddings. It is grounded directly on the
// teacher's internal/store/hnsw.go: one github.com/coder/hnsw graph per
// repo, a chunk-id<->key map persisted alongside the graph, and lazy
// deletion (orphaning keys) since coder/hnsw cannot safely delete the last
// node in a graph.
package vectorstore

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	"github.com/breeze4/indiseek/internal/ierrors"
)

// ErrDimensionMismatch is returned by Upsert/Search when a vector's length
// does not match the dimensionality the repo's index was opened with.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Config controls one repo's index parameters. Dimensionality is bound at
// first Open and never changes for that repo's lifetime — mixing
// dimensionalities in one repo is undefined per spec.md §4.2, so Open
// enforces it instead of silently reinterpreting vectors.
type Config struct {
	Dimensions int
	Metric     string // "cos" (default) or "l2"
	M          int
	EfSearch   int
}

// DefaultConfig returns the teacher's tuned HNSW parameters.
func DefaultConfig(dimensions int) Config {
	return Config{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   20,
	}
}

// Result is one nearest-neighbor hit.
type Result struct {
	ChunkID  int64
	Distance float32
	Score    float32
}

// repoIndex wraps one repo's HNSW graph plus its chunk-id<->key mapping.
type repoIndex struct {
	mu      sync.RWMutex
	graph   *hnsw.Graph[uint64]
	config  Config
	idMap   map[int64]uint64
	keyMap  map[uint64]int64
	nextKey uint64
}

// indexMetadata is the gob side-car persisted next to the exported graph.
type indexMetadata struct {
	IDMap   map[int64]uint64
	NextKey uint64
	Config  Config
}

func newRepoIndex(cfg Config) *repoIndex {
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}

	graph := hnsw.NewGraph[uint64]()
	switch cfg.Metric {
	case "l2":
		graph.Distance = hnsw.EuclideanDistance
	default:
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25

	return &repoIndex{
		graph:  graph,
		config: cfg,
		idMap:  make(map[int64]uint64),
		keyMap: make(map[uint64]int64),
	}
}

// Manager owns one repoIndex per repo and the on-disk layout under dataDir.
type Manager struct {
	mu      sync.Mutex
	dataDir string
	repos   map[int64]*repoIndex
}

// NewManager creates a Manager rooted at dataDir (one file pair per repo
// under dataDir/lancedb: vectors_{repoID}.hnsw and vectors_{repoID}.hnsw.meta).
func NewManager(dataDir string) *Manager {
	return &Manager{dataDir: dataDir, repos: make(map[int64]*repoIndex)}
}

func (m *Manager) indexPath(repoID int64) string {
	return filepath.Join(m.dataDir, "lancedb", fmt.Sprintf("vectors_%d.hnsw", repoID))
}

// Open creates or loads repoID's index bound to the given dimensionality.
// Calling Open twice for the same repo with a different Dimensions returns
// ErrDimensionMismatch — the schema invariant spec.md §4.2 requires.
func (m *Manager) Open(repoID int64, dimensions int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.repos[repoID]; ok {
		if existing.config.Dimensions != dimensions {
			return ErrDimensionMismatch{Expected: existing.config.Dimensions, Got: dimensions}
		}
		return nil
	}

	idx := newRepoIndex(DefaultConfig(dimensions))
	path := m.indexPath(repoID)
	if fileExists(path) {
		if err := loadInto(idx, path); err != nil {
			return ierrors.Wrap(ierrors.Internal, "vectorstore: load", err)
		}
		if idx.config.Dimensions != dimensions {
			return ErrDimensionMismatch{Expected: idx.config.Dimensions, Got: dimensions}
		}
	}
	m.repos[repoID] = idx
	return nil
}

func (m *Manager) get(repoID int64) (*repoIndex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.repos[repoID]
	if !ok {
		return nil, ierrors.NotFoundf("vector index for repo %d not open", repoID)
	}
	return idx, nil
}

// Row is one chunk's embedding to upsert.
type Row struct {
	ChunkID int64
	Vector  []float32
}

// Upsert inserts or replaces vectors for the given chunk ids. An existing
// id is lazily orphaned (key unmapped, node left in the graph) rather than
// deleted from the graph, matching the teacher's workaround for a
// coder/hnsw bug when deleting the last node.
func (idx *repoIndex) upsert(rows []Row) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range rows {
		if len(r.Vector) != idx.config.Dimensions {
			return ErrDimensionMismatch{Expected: idx.config.Dimensions, Got: len(r.Vector)}
		}
	}

	for _, r := range rows {
		if existingKey, exists := idx.idMap[r.ChunkID]; exists {
			delete(idx.keyMap, existingKey)
			delete(idx.idMap, r.ChunkID)
		}

		key := idx.nextKey
		idx.nextKey++

		vec := make([]float32, len(r.Vector))
		copy(vec, r.Vector)
		if idx.config.Metric == "cos" {
			normalize(vec)
		}

		idx.graph.Add(hnsw.MakeNode(key, vec))
		idx.idMap[r.ChunkID] = key
		idx.keyMap[key] = r.ChunkID
	}
	return nil
}

// Upsert upserts vectors for repoID, which must already be Open.
func (m *Manager) Upsert(repoID int64, rows []Row) error {
	idx, err := m.get(repoID)
	if err != nil {
		return err
	}
	return idx.upsert(rows)
}

func (idx *repoIndex) search(query []float32, k int) ([]*Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(query) != idx.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: idx.config.Dimensions, Got: len(query)}
	}
	if idx.graph.Len() == 0 {
		return []*Result{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if idx.config.Metric == "cos" {
		normalize(q)
	}

	nodes := idx.graph.Search(q, k)
	out := make([]*Result, 0, len(nodes))
	for _, n := range nodes {
		chunkID, ok := idx.keyMap[n.Key]
		if !ok {
			continue // orphaned (lazily deleted) node
		}
		distance := idx.graph.Distance(q, n.Value)
		out = append(out, &Result{
			ChunkID:  chunkID,
			Distance: distance,
			Score:    distanceToScore(distance, idx.config.Metric),
		})
	}
	return out, nil
}

// Search runs a k-NN query against repoID's index.
func (m *Manager) Search(repoID int64, query []float32, k int) ([]*Result, error) {
	idx, err := m.get(repoID)
	if err != nil {
		return nil, err
	}
	return idx.search(query, k)
}

func (idx *repoIndex) delete(chunkIDs []int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, id := range chunkIDs {
		if key, ok := idx.idMap[id]; ok {
			delete(idx.keyMap, key)
			delete(idx.idMap, id)
		}
	}
}

// DeleteByChunkIDs lazily deletes the given chunk ids from repoID's index.
// Callers resolve file paths to chunk ids via the relational store first
// (the vector store itself has no notion of file path).
func (m *Manager) DeleteByChunkIDs(repoID int64, chunkIDs []int64) error {
	idx, err := m.get(repoID)
	if err != nil {
		return err
	}
	idx.delete(chunkIDs)
	return nil
}

// AllChunkIDs returns every chunk id currently mapped (not orphaned) in
// repoID's index — used by the embed stage's resumability check and by
// consistency checks against the relational store.
func (m *Manager) AllChunkIDs(repoID int64) ([]int64, error) {
	idx, err := m.get(repoID)
	if err != nil {
		return nil, err
	}
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	ids := make([]int64, 0, len(idx.idMap))
	for id := range idx.idMap {
		ids = append(ids, id)
	}
	return ids, nil
}

// Save persists repoID's index to disk via atomic temp-file-plus-rename,
// matching the teacher's Save.
func (m *Manager) Save(repoID int64) error {
	idx, err := m.get(repoID)
	if err != nil {
		return err
	}
	return saveFrom(idx, m.indexPath(repoID))
}

// Close drops repoID's in-memory index (after Save, if persistence is
// wanted).
func (m *Manager) Close(repoID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.repos, repoID)
}

// DeleteRepo removes repoID's on-disk index files entirely (repo deletion).
func (m *Manager) DeleteRepo(repoID int64) error {
	m.Close(repoID)
	path := m.indexPath(repoID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return ierrors.Wrap(ierrors.Internal, "vectorstore: delete repo index", err)
	}
	if err := os.Remove(path + ".meta"); err != nil && !os.IsNotExist(err) {
		return ierrors.Wrap(ierrors.Internal, "vectorstore: delete repo index meta", err)
	}
	return nil
}

func saveFrom(idx *repoIndex, path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vectorstore: create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("vectorstore: create index file: %w", err)
	}
	if err := idx.graph.Export(f); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore: export graph: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore: close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore: rename index file: %w", err)
	}

	return saveMetadata(idx, path+".meta")
}

func saveMetadata(idx *repoIndex, path string) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("vectorstore: create metadata file: %w", err)
	}
	meta := indexMetadata{IDMap: idx.idMap, NextKey: idx.nextKey, Config: idx.config}
	if err := gob.NewEncoder(f).Encode(meta); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore: encode metadata: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vectorstore: close metadata file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

func loadInto(idx *repoIndex, path string) error {
	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("vectorstore: open metadata: %w", err)
	}
	defer metaFile.Close()

	var meta indexMetadata
	if err := gob.NewDecoder(metaFile).Decode(&meta); err != nil {
		return fmt.Errorf("vectorstore: decode metadata: %w", err)
	}
	idx.idMap = meta.IDMap
	idx.nextKey = meta.NextKey
	idx.config = meta.Config
	idx.keyMap = make(map[uint64]int64, len(idx.idMap))
	for id, key := range idx.idMap {
		idx.keyMap[key] = id
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("vectorstore: open index: %w", err)
	}
	defer f.Close()

	// coder/hnsw's Import requires io.ByteReader.
	reader := bufio.NewReader(f)
	return idx.graph.Import(reader)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func normalize(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

func distanceToScore(distance float32, metric string) float32 {
	switch metric {
	case "l2":
		return 1.0 / (1.0 + distance)
	default:
		return 1.0 - distance/2.0
	}
}
