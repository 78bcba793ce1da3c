package postgres

import (
	"sync"

	"github.com/coder/hnsw"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
)

// hnswMaxNeighbors is the graph's M parameter.
const hnswMaxNeighbors = 16

// caseIndex is an in-memory HNSW graph over active case descriptors. The
// graph does not support true deletion, so removed cases are dropped from
// idToCase and filtered out of search results.
type caseIndex struct {
	mu       sync.RWMutex
	graph    *hnsw.Graph[string]
	idToCase map[string]cases.Case
}

func newCaseIndex() *caseIndex {
	return &caseIndex{idToCase: make(map[string]cases.Case)}
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.Distance = hnsw.CosineDistance
	return g
}

// rebuild replaces the index contents with the given cases.
func (ix *caseIndex) rebuild(active []cases.Case) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	g := newGraph()
	ix.idToCase = make(map[string]cases.Case, len(active))
	for _, c := range active {
		if len(c.Descriptor) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(c.ID, c.Descriptor))
		ix.idToCase[c.ID] = c
	}
	ix.graph = g
}

// add indexes one case. Re-adding an id replaces its node.
func (ix *caseIndex) add(c cases.Case) {
	if len(c.Descriptor) == 0 {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.graph == nil {
		ix.graph = newGraph()
	}
	ix.graph.Add(hnsw.MakeNode(c.ID, c.Descriptor))
	ix.idToCase[c.ID] = c
}

// remove drops a case from search results.
func (ix *caseIndex) remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	delete(ix.idToCase, id)
}

// count returns the number of searchable cases.
func (ix *caseIndex) count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.idToCase)
}

// nearest returns up to k cases closest to the query by cosine distance.
func (ix *caseIndex) nearest(query []float32, k int) []cases.Case {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil
	}

	neighbors := ix.graph.Search(query, k)
	out := make([]cases.Case, 0, len(neighbors))
	for _, n := range neighbors {
		c, ok := ix.idToCase[n.Key]
		if !ok {
			continue
		}
		out = append(out, c)
	}
	return out
}
