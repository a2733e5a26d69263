// internal/adapters/memstore/vector.go
package memstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/ammerola/household-be/internal/core/domain"
	"github.com/ammerola/household-be/internal/core/ports"
)

type document struct {
	vector     []float32
	properties map[string]any
}

// VectorIndex is an in-memory VectorStore ranking by cosine similarity
type VectorIndex struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]document
}

var _ ports.VectorStore = (*VectorIndex)(nil)

func NewVectorIndex() *VectorIndex {
	return &VectorIndex{docs: make(map[uuid.UUID]document)}
}

func (v *VectorIndex) Upsert(_ context.Context, id uuid.UUID, vector []float32, properties map[string]any) error {
	props := make(map[string]any, len(properties))
	for k, val := range properties {
		props[k] = val
	}
	v.mu.Lock()
	v.docs[id] = document{vector: append([]float32(nil), vector...), properties: props}
	v.mu.Unlock()
	return nil
}

func (v *VectorIndex) Delete(_ context.Context, id uuid.UUID) error {
	v.mu.Lock()
	delete(v.docs, id)
	v.mu.Unlock()
	return nil
}

func (v *VectorIndex) Query(_ context.Context, vector []float32, limit int) ([]domain.SearchHit, error) {
	v.mu.RLock()
	hits := make([]domain.SearchHit, 0, len(v.docs))
	for id, doc := range v.docs {
		name, _ := doc.properties["name"].(string)
		hits = append(hits, domain.SearchHit{
			ItemID: id,
			Name:   name,
			// weaviate reports certainty in [0, 1]
			Certainty: (cosine(vector, doc.vector) + 1) / 2,
		})
	}
	v.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Certainty != hits[j].Certainty {
			return hits[i].Certainty > hits[j].Certainty
		}
		return hits[i].ItemID.String() < hits[j].ItemID.String()
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (v *VectorIndex) Ready(context.Context) error { return nil }

// Has reports whether id is indexed
func (v *VectorIndex) Has(id uuid.UUID) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.docs[id]
	return ok
}

// Properties returns a copy of the stored properties for id
func (v *VectorIndex) Properties(id uuid.UUID) (map[string]any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	doc, ok := v.docs[id]
	if !ok {
		return nil, false
	}
	out := make(map[string]any, len(doc.properties))
	for k, val := range doc.properties {
		out[k] = val
	}
	return out, true
}

// Len returns the number of indexed documents
func (v *VectorIndex) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.docs)
}

func cosine(a, b []float32) float64 {
	n := min(len(a), len(b))
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
