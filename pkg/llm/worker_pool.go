package llm

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
)

// WorkerPoolConfig configures the LLM worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int // Maximum concurrent backend calls (default: 4)
}

// DefaultWorkerPoolConfig returns sensible defaults.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		MaxConcurrent: 4,
	}
}

// WorkerPool bounds the number of concurrent backend calls, such as
// embedding requests made while indexing references.
type WorkerPool struct {
	config WorkerPoolConfig
	logger *zap.Logger
}

// NewWorkerPool creates a new LLM worker pool.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultWorkerPoolConfig().MaxConcurrent
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkerPool{
		config: config,
		logger: logger.Named("llm-worker-pool"),
	}
}

// WorkItem represents a unit of work to be processed.
type WorkItem[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// WorkResult represents the result of a work item.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process executes all work items with bounded parallelism and returns
// results in submission order. Every item gets a result; items not started
// before ctx is done carry ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]WorkResult[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	done := func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		completed++
		onProgress(completed, len(items))
	}

	for i, item := range items {
		wg.Add(1)
		go func(i int, item WorkItem[T]) {
			defer wg.Done()
			defer done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = WorkResult[T]{ID: item.ID, Err: ctx.Err()}
				return
			}

			result, err := item.Execute(ctx)
			if err != nil {
				pool.logger.Debug("work item failed", zap.String("id", item.ID), zap.Error(err))
			}
			results[i] = WorkResult[T]{ID: item.ID, Result: result, Err: err}
		}(i, item)
	}
	wg.Wait()

	return results
}

// EmbedAll embeds texts through the pool, returning vectors in input order.
// The first failure in input order is returned.
func EmbedAll(ctx context.Context, pool *WorkerPool, embedder Embedder, texts []string, model string) ([][]float32, error) {
	items := make([]WorkItem[[]float32], len(texts))
	for i, text := range texts {
		items[i] = WorkItem[[]float32]{
			ID: text,
			Execute: func(ctx context.Context) ([]float32, error) {
				return embedder.CreateEmbedding(ctx, text, model)
			},
		}
	}

	vectors := make([][]float32, len(texts))
	for i, r := range Process(ctx, pool, items, nil) {
		if r.Err != nil {
			return nil, &EmbedError{Text: texts[i], Err: r.Err}
		}
		vectors[i] = r.Result
	}
	return vectors, nil
}

// EmbedError identifies the input whose embedding failed.
type EmbedError struct {
	Text string
	Err  error
}

func (e *EmbedError) Error() string {
	return fmt.Sprintf("embed %q: %v", logging.TruncateString(e.Text, 80), e.Err)
}

func (e *EmbedError) Unwrap() error { return e.Err }
