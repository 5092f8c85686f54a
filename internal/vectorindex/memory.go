package vectorindex

import (
	"context"
	"math"
	"sort"
	"strings"
)

// document is one indexed item: its metadata plus the deterministic
// embedding computed from its text at Add time.
type document struct {
	metadata map[string]string
	vector   []float64
}

// Memory is a deterministic, dependency-free Index implementation: it
// embeds text with a fixed-dimension hashed bag-of-words vector rather
// than calling an external embedding model, and searches by brute-force L2
// distance. This is the external collaborator's test/default double
// (spec §1/§6 name the embedding service and vector index as out of
// scope); production deployments swap in a real backend behind the same
// Index interface.
type Memory struct {
	dim  int
	docs []document
}

// NewMemory constructs an empty in-memory index with the given embedding
// dimension (see config key chroma_embedding_dim).
func NewMemory(dim int) *Memory {
	if dim <= 0 {
		dim = 64
	}
	return &Memory{dim: dim}
}

// Add indexes one document's text under the given metadata. Population is
// expected to happen once at process startup and to be serialized by the
// caller, per the concurrency model (§5): Memory itself does not lock,
// since Add and Query are never expected to race.
func (m *Memory) Add(text string, metadata map[string]string) {
	m.docs = append(m.docs, document{metadata: metadata, vector: embed(text, m.dim)})
}

// Query implements Index.
func (m *Memory) Query(_ context.Context, queryText string, k int, where map[string]string) ([]Match, error) {
	qv := embed(queryText, m.dim)

	matches := make([]Match, 0, len(m.docs))
	for _, doc := range m.docs {
		if !matchesWhere(doc.metadata, where) {
			continue
		}
		matches = append(matches, Match{Metadata: doc.metadata, L2Distance: l2(qv, doc.vector)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].L2Distance < matches[j].L2Distance
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func matchesWhere(metadata, where map[string]string) bool {
	for k, v := range where {
		if metadata[k] != v {
			return false
		}
	}
	return true
}

// embed produces a deterministic fixed-dimension vector from text by
// hashing each token into a bucket and accumulating term frequency, then
// L2-normalizing. Two texts sharing more tokens land closer together,
// which is the property the resolver's L2-distance gating needs; it is
// not a semantic embedding.
func embed(text string, dim int) []float64 {
	v := make([]float64, dim)
	tokens := strings.Fields(strings.ToLower(text))
	for _, tok := range tokens {
		bucket := hashToken(tok) % uint32(dim)
		v[bucket] += 1.0
	}

	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] /= norm
	}
	return v
}

func hashToken(tok string) uint32 {
	// FNV-1a, inlined to avoid importing hash/fnv for a one-line use.
	var h uint32 = 2166136261
	for i := 0; i < len(tok); i++ {
		h ^= uint32(tok[i])
		h *= 16777619
	}
	return h
}

func l2(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
