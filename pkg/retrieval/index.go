package retrieval

import "context"

// Embedder turns text into a vector with the named model.
type Embedder interface {
	CreateEmbedding(ctx context.Context, text, model string) ([]float32, error)
}

// SearchRequest asks an index for the nearest references to Vector.
// An active Filter restricts results to untagged entries and entries sharing
// at least one of its tags.
type SearchRequest struct {
	Collection string
	Vector     []float32
	Limit      int
	Filter     TagFilter
}

// VectorIndex performs nearest-neighbour search over stored references.
// Results are ordered by descending relevance.
type VectorIndex interface {
	Search(ctx context.Context, req SearchRequest) ([]ReferencePair, error)
}

// Record is one reference as stored in an index.
type Record struct {
	Question string
	SQL      string
	Tags     []string
	Vector   []float32
}

// ReferenceWriter stores embedded references.
type ReferenceWriter interface {
	Insert(ctx context.Context, collection string, records []Record) error
}

// IndexStatus summarises the collection backing retrieval.
type IndexStatus struct {
	Backend    string `json:"backend"`
	Collection string `json:"collection"`
	Ready      bool   `json:"ready"`
	// References is -1 when the backend does not report a count.
	References int `json:"references"`
}

// IndexInspector reports on a reference collection.
type IndexInspector interface {
	Inspect(ctx context.Context, collection string) (IndexStatus, error)
}
