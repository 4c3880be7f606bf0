package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/metrics"
)

// Config names the collection and embedding model used for retrieval.
type Config struct {
	Collection     string
	EmbeddingModel string
}

// Retriever finds prior question/SQL pairs similar to a new question.
type Retriever struct {
	embedder Embedder
	index    VectorIndex
	cfg      Config
	logger   *zap.Logger
}

// NewRetriever creates a retriever. Any of embedder or index may be nil, in
// which case retrieval is disabled.
func NewRetriever(embedder Embedder, index VectorIndex, cfg Config, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		embedder: embedder,
		index:    index,
		cfg:      cfg,
		logger:   logger.Named("retrieval"),
	}
}

// Enabled reports whether every dependency of retrieval is configured.
func (r *Retriever) Enabled() bool {
	return r != nil &&
		r.embedder != nil &&
		r.index != nil &&
		r.cfg.Collection != "" &&
		r.cfg.EmbeddingModel != ""
}

// Retrieve returns up to limit references for question, best first. It never
// fails: when disabled, or on any embedding or search error, the result is empty.
func (r *Retriever) Retrieve(ctx context.Context, question string, limit int, tags []string) References {
	refs, err := r.Search(ctx, question, limit, tags)
	if err != nil {
		if r.Enabled() {
			metrics.IncrementRetrievalErrors()
			r.logger.Warn("reference retrieval failed",
				zap.String("error", logging.SanitizeError(err)),
			)
		}
		return References{}
	}
	return refs
}

// Search is Retrieve with errors surfaced. A disabled retriever fails with
// apperrors.ErrRetrievalUnavailable.
func (r *Retriever) Search(ctx context.Context, question string, limit int, tags []string) (References, error) {
	if !r.Enabled() {
		return nil, apperrors.ErrRetrievalUnavailable
	}
	if limit <= 0 || question == "" {
		return References{}, nil
	}

	vector, err := r.embedder.CreateEmbedding(ctx, question, r.cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	pairs, err := r.index.Search(ctx, SearchRequest{
		Collection: r.cfg.Collection,
		Vector:     vector,
		Limit:      limit,
		Filter:     NewTagFilter(tags, r.logger),
	})
	if err != nil {
		return nil, err
	}

	refs := NewReferences(pairs)
	if len(refs) > limit {
		refs = refs[:limit]
	}
	metrics.ObserveReferences(len(refs))
	r.logger.Debug("retrieved references",
		zap.Int("count", len(refs)),
		zap.Int("limit", limit),
		zap.Strings("tags", tags),
	)
	return refs, nil
}
