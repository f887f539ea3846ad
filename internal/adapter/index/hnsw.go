package index

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw/heap"

	"supplyrag/internal/port"
)

// InnerProductDistance is 1 - a·b. For unit vectors it orders neighbours
// the same way as cosine distance.
func InnerProductDistance(a, b []float32) float32 {
	return 1 - dot(a, b)
}

func dot(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// Params are the HNSW graph parameters.
type Params struct {
	M              int
	EfConstruction int
	EfSearch       int
	Seed           int64
}

func (p Params) validate() error {
	if p.M <= 0 || p.EfConstruction <= 0 || p.EfSearch <= 0 {
		return fmt.Errorf("invalid HNSW params: m=%d ef_construction=%d ef_search=%d", p.M, p.EfConstruction, p.EfSearch)
	}
	return nil
}

type node struct {
	vec []float32
	// friends[l] are the neighbour rows on layer l.
	friends [][]int32
}

// HNSW is an approximate inner-product index over unit vectors. Keys are
// row positions 0..Len()-1.
type HNSW struct {
	mu       sync.RWMutex
	nodes    []node
	entry    int
	maxLevel int
	m        int
	m0       int
	efBuild  int
	efSearch int
	ml       float64
	rng      *rand.Rand
	dim      int
}

func newHNSW(p Params) *HNSW {
	m := max(p.M, 2)
	return &HNSW{
		entry:    -1,
		m:        m,
		m0:       2 * m,
		efBuild:  max(p.EfConstruction, m),
		efSearch: p.EfSearch,
		ml:       1 / math.Log(float64(m)),
		rng:      rand.New(rand.NewSource(p.Seed)),
	}
}

// Build inserts vectors in row order. Level assignment is seeded, so the
// same input and params produce the same graph.
func Build(vectors [][]float32, p Params) (*HNSW, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	h := newHNSW(p)
	for row, v := range vectors {
		if h.dim == 0 {
			h.dim = len(v)
		}
		if len(v) != h.dim || h.dim == 0 {
			return nil, fmt.Errorf("row %d has dimension %d, expected %d", row, len(v), h.dim)
		}
		h.insert(v)
	}
	return h, nil
}

// Len returns the number of indexed vectors.
func (h *HNSW) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes)
}

// Dim returns the vector dimension, 0 for an empty index.
func (h *HNSW) Dim() int {
	return h.dim
}

// EfSearch returns the configured query beam width.
func (h *HNSW) EfSearch() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.efSearch
}

// SetEfSearch changes the query beam width without rebuilding.
func (h *HNSW) SetEfSearch(ef int) {
	if ef <= 0 {
		return
	}
	h.mu.Lock()
	h.efSearch = ef
	h.mu.Unlock()
}

// Search returns up to k rows ordered by inner product, highest first.
// Ties keep ascending row order. The beam is max(ef_search, k) for this
// call only.
func (h *HNSW) Search(query []float32, k int) ([]port.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	if h.dim != 0 && len(query) != h.dim {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", h.dim, len(query))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 {
		return nil, nil
	}

	found := h.searchLayer(query, h.descend(query, 0), max(h.efSearch, k), 0)
	found = found[:min(k, len(found))]

	hits := make([]port.VectorHit, 0, len(found))
	for _, c := range found {
		hits = append(hits, port.VectorHit{Row: c.row, Score: float64(dot(query, h.nodes[c.row].vec))})
	}
	sortHits(hits)
	return hits, nil
}

func sortHits(hits []port.VectorHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
}

// Vector returns the stored vector of a row.
func (h *HNSW) Vector(row int) ([]float32, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if row < 0 || row >= len(h.nodes) {
		return nil, false
	}
	return h.nodes[row].vec, true
}

type candidate struct {
	row  int
	dist float32
}

// nearest orders a heap closest first, farthest orders it farthest first.
// Equal distances fall back to row order so searches are deterministic.
type (
	nearest  candidate
	farthest candidate
)

func (a nearest) Less(b nearest) bool {
	if a.dist != b.dist {
		return a.dist < b.dist
	}
	return a.row < b.row
}

func (a farthest) Less(b farthest) bool {
	if a.dist != b.dist {
		return a.dist > b.dist
	}
	return a.row > b.row
}

func (h *HNSW) distance(q []float32, row int) float32 {
	return InnerProductDistance(q, h.nodes[row].vec)
}

// descend walks greedily from the entry point down to layer stop+1 and
// returns the entry points for layer stop.
func (h *HNSW) descend(q []float32, stop int) []candidate {
	ep := []candidate{{row: h.entry, dist: h.distance(q, h.entry)}}
	for l := h.maxLevel; l > stop; l-- {
		ep = h.searchLayer(q, ep, 1, l)[:1]
	}
	return ep
}

// searchLayer is the ef-bounded best-first search of one layer. It returns
// up to ef candidates, closest first.
func (h *HNSW) searchLayer(q []float32, entries []candidate, ef, level int) []candidate {
	visited := make(map[int]struct{}, ef*4)
	var frontier heap.Heap[nearest]
	var results heap.Heap[farthest]

	for _, e := range entries {
		visited[e.row] = struct{}{}
		frontier.Push(nearest(e))
		results.Push(farthest(e))
	}
	for results.Len() > ef {
		results.Pop()
	}

	for frontier.Len() > 0 {
		c := frontier.Pop()
		if results.Len() >= ef && c.dist > results.Min().dist {
			break
		}
		for _, f := range h.nodes[c.row].friends[level] {
			row := int(f)
			if _, seen := visited[row]; seen {
				continue
			}
			visited[row] = struct{}{}

			d := h.distance(q, row)
			if results.Len() < ef || d < results.Min().dist {
				frontier.Push(nearest{row: row, dist: d})
				results.Push(farthest{row: row, dist: d})
				if results.Len() > ef {
					results.Pop()
				}
			}
		}
	}

	out := make([]candidate, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = candidate(results.Pop())
	}
	return out
}

// selectNeighbors keeps candidates that are closer to the base than to any
// already selected neighbour, then tops up with the pruned ones. cands must
// be sorted closest first.
func (h *HNSW) selectNeighbors(cands []candidate, m int) []candidate {
	if len(cands) <= m {
		return cands
	}
	selected := make([]candidate, 0, m)
	var pruned []candidate
	for _, c := range cands {
		if len(selected) >= m {
			break
		}
		keep := true
		for _, s := range selected {
			if h.distance(h.nodes[c.row].vec, s.row) < c.dist {
				keep = false
				break
			}
		}
		if keep {
			selected = append(selected, c)
		} else {
			pruned = append(pruned, c)
		}
	}
	for _, c := range pruned {
		if len(selected) >= m {
			break
		}
		selected = append(selected, c)
	}
	return selected
}

func (h *HNSW) randomLevel() int {
	u := h.rng.Float64()
	for u == 0 {
		u = h.rng.Float64()
	}
	return int(-math.Log(u) * h.ml)
}

func (h *HNSW) insert(vec []float32) {
	row := len(h.nodes)
	level := h.randomLevel()
	h.nodes = append(h.nodes, node{vec: vec, friends: make([][]int32, level+1)})

	if h.entry < 0 {
		h.entry, h.maxLevel = row, level
		return
	}

	ep := h.descend(vec, level)
	for l := min(level, h.maxLevel); l >= 0; l-- {
		found := h.searchLayer(vec, ep, h.efBuild, l)
		neighbours := h.selectNeighbors(found, h.m)

		friends := make([]int32, len(neighbours))
		for i, n := range neighbours {
			friends[i] = int32(n.row)
		}
		h.nodes[row].friends[l] = friends

		limit := h.m
		if l == 0 {
			limit = h.m0
		}
		for _, n := range neighbours {
			h.link(n.row, row, l, limit)
		}
		ep = found
	}

	if level > h.maxLevel {
		h.entry, h.maxLevel = row, level
	}
}

// link adds to as a neighbour of from on level and shrinks the list back
// to limit when it overflows.
func (h *HNSW) link(from, to, level, limit int) {
	n := &h.nodes[from]
	n.friends[level] = append(n.friends[level], int32(to))
	if len(n.friends[level]) <= limit {
		return
	}

	cands := make([]candidate, len(n.friends[level]))
	for i, f := range n.friends[level] {
		cands[i] = candidate{row: int(f), dist: h.distance(n.vec, int(f))}
	}
	sort.Slice(cands, func(i, j int) bool { return nearest(cands[i]).Less(nearest(cands[j])) })

	kept := h.selectNeighbors(cands, limit)
	friends := make([]int32, len(kept))
	for i, c := range kept {
		friends[i] = int32(c.row)
	}
	n.friends[level] = friends
}

const indexMagic = "SRHNSW01"

type indexHeader struct {
	Dim      int32
	Count    int32
	M        int32
	M0       int32
	EfBuild  int32
	EfSearch int32
	Entry    int32
	MaxLevel int32
}

// Save writes the graph to path atomically.
func (h *HNSW) Save(path string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp index file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := h.encode(w); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to export index: %w", err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (h *HNSW) encode(w io.Writer) error {
	if _, err := io.WriteString(w, indexMagic); err != nil {
		return err
	}
	hdr := indexHeader{
		Dim:      int32(h.dim),
		Count:    int32(len(h.nodes)),
		M:        int32(h.m),
		M0:       int32(h.m0),
		EfBuild:  int32(h.efBuild),
		EfSearch: int32(h.efSearch),
		Entry:    int32(h.entry),
		MaxLevel: int32(h.maxLevel),
	}
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	for _, n := range h.nodes {
		if err := binary.Write(w, binary.LittleEndian, int32(len(n.friends))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, n.vec); err != nil {
			return err
		}
		for _, friends := range n.friends {
			if err := binary.Write(w, binary.LittleEndian, int32(len(friends))); err != nil {
				return err
			}
			if err := binary.Write(w, binary.LittleEndian, friends); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads a graph written by Save. efSearch > 0 overrides the saved
// beam width.
func Load(path string, efSearch int) (*HNSW, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()

	h, err := decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to import index: %w", err)
	}
	if efSearch > 0 {
		h.efSearch = efSearch
	}
	return h, nil
}

func decode(r io.Reader) (*HNSW, error) {
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, err
	}
	if string(magic) != indexMagic {
		return nil, errors.New("not a supplyrag HNSW index")
	}

	var hdr indexHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, err
	}
	if hdr.Count < 0 || hdr.Dim < 0 || (hdr.Count > 0 && (hdr.Entry < 0 || hdr.Entry >= hdr.Count)) {
		return nil, fmt.Errorf("corrupt header: count=%d dim=%d entry=%d", hdr.Count, hdr.Dim, hdr.Entry)
	}

	h := &HNSW{
		nodes:    make([]node, hdr.Count),
		entry:    int(hdr.Entry),
		maxLevel: int(hdr.MaxLevel),
		m:        int(hdr.M),
		m0:       int(hdr.M0),
		efBuild:  int(hdr.EfBuild),
		efSearch: int(hdr.EfSearch),
		dim:      int(hdr.Dim),
	}
	if hdr.Count == 0 {
		h.entry = -1
	}

	for row := range h.nodes {
		var levels int32
		if err := binary.Read(r, binary.LittleEndian, &levels); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		if levels <= 0 || int(levels) > h.maxLevel+1 {
			return nil, fmt.Errorf("row %d: invalid level count %d", row, levels)
		}
		vec := make([]float32, h.dim)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		friends := make([][]int32, levels)
		for l := range friends {
			var n int32
			if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
			if n < 0 || n > hdr.Count {
				return nil, fmt.Errorf("row %d: invalid neighbour count %d", row, n)
			}
			friends[l] = make([]int32, n)
			if err := binary.Read(r, binary.LittleEndian, friends[l]); err != nil {
				return nil, fmt.Errorf("row %d: %w", row, err)
			}
			for _, fr := range friends[l] {
				if fr < 0 || fr >= hdr.Count {
					return nil, fmt.Errorf("row %d: neighbour %d out of range", row, fr)
				}
			}
		}
		h.nodes[row] = node{vec: vec, friends: friends}
	}
	if h.entry >= 0 && len(h.nodes[h.entry].friends) != h.maxLevel+1 {
		return nil, fmt.Errorf("entry row %d is not on the top layer", h.entry)
	}
	return h, nil
}
