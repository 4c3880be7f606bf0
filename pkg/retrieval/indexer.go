package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/llm"
)

// DefaultIndexConcurrency bounds parallel embedding requests while indexing.
const DefaultIndexConcurrency = 4

// Indexer embeds question/SQL pairs and writes them to a ReferenceWriter.
type Indexer struct {
	embedder Embedder
	writer   ReferenceWriter
	cfg      Config
	pool     *llm.WorkerPool
	logger   *zap.Logger
}

func NewIndexer(embedder Embedder, writer ReferenceWriter, cfg Config, logger *zap.Logger) *Indexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Indexer{
		embedder: embedder,
		writer:   writer,
		cfg:      cfg,
		pool:     llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: DefaultIndexConcurrency}, logger),
		logger:   logger.Named("indexer"),
	}
}

// Enabled reports whether the indexer can write.
func (ix *Indexer) Enabled() bool {
	return ix != nil && ix.embedder != nil && ix.writer != nil &&
		ix.cfg.Collection != "" && ix.cfg.EmbeddingModel != ""
}

// Add embeds and stores entries, returning how many were written. The
// question is what gets embedded, matching what Retrieve searches with.
func (ix *Indexer) Add(ctx context.Context, entries []SeedEntry) (int, error) {
	if !ix.Enabled() {
		return 0, apperrors.ErrRetrievalUnavailable
	}

	if len(entries) == 0 {
		return 0, nil
	}
	questions := make([]string, len(entries))
	for i, e := range entries {
		if e.Question == "" || e.SQL == "" {
			return 0, fmt.Errorf("reference needs both question and sql (question=%q)", e.Question)
		}
		questions[i] = e.Question
	}

	vectors, err := llm.EmbedAll(ctx, ix.pool, ix.embedder, questions, ix.cfg.EmbeddingModel)
	if err != nil {
		return 0, err
	}

	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = Record{
			Question: e.Question,
			SQL:      e.SQL,
			Tags:     SafeTags(e.Tags, ix.logger),
			Vector:   vectors[i],
		}
	}

	if err := ix.writer.Insert(ctx, ix.cfg.Collection, records); err != nil {
		return 0, fmt.Errorf("insert references: %w", err)
	}
	ix.logger.Info("indexed references",
		zap.Int("count", len(records)),
		zap.String("collection", ix.cfg.Collection),
	)
	return len(records), nil
}
