package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/auth"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/config"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/handlers"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/llm"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/mcp"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/mcp/tools"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/middleware"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/schema"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/services"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/vectorstore/milvus"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/vectorstore/sqlitevec"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.String("error", logging.SanitizeError(err)))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("datasource", cfg.Datasource.Type),
		zap.String("llm", logging.SanitizeAIURI(cfg.LLM.URI)),
		zap.String("embedding", logging.SanitizeAIURI(cfg.Embedding.URI)),
		zap.String("vector_store", cfg.VectorStore.Backend),
		zap.Bool("auth_required", cfg.Auth.Required),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification))

	// Datasource
	dialect, err := datasource.ParseDialect(cfg.Datasource.Type)
	if err != nil {
		return err
	}
	connManager := datasource.NewConnectionManager(datasource.ConnectionManagerConfig{
		TTLMinutes:   cfg.Datasource.ConnectionTTLMinutes,
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
	}, logger)
	defer connManager.Close()

	dsOptions := cfg.Datasource.DatasourceOptions()
	dsOptions["host"] = config.ResolveHostForDocker(cfg.Datasource.Host)
	connector, err := connManager.GetOrCreateConnection(ctx, dialect, dsOptions)
	if err != nil {
		return fmt.Errorf("connect to datasource: %w", err)
	}
	builder := schema.NewBuilder(connector.DB(), dialect, schema.BuilderConfig{
		Concurrency:       cfg.Generation.Concurrency,
		SampleValueMaxLen: cfg.Generation.SampleValueMaxLen,
	}, logger)

	// Completion backend
	completer, err := llm.NewCompleter(cfg.LLM.URI, llm.CompleterOptions{
		APIKey:      cfg.LLM.APIKey,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Breaker:     llm.DefaultCircuitBreakerConfig(),
	}, logger)
	if err != nil {
		return err
	}

	// Reference retrieval
	refs, err := setupRetrieval(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer refs.close()

	generator := services.NewGenerationService(builder, refs.retriever, completer, services.GenerationConfig{
		Schema:      cfg.Datasource.Schema,
		SampleLimit: cfg.Generation.SampleLimit,
		RefLimit:    cfg.Generation.RefLimit,
		Timeout:     cfg.Generation.Timeout(),
	}, logger)

	// MCP server
	mcpServer := mcp.NewServer("ekaya-text2sql", cfg.Version, mcp.NewAuditLogger(logger), logger)
	tools.RegisterAll(mcpServer.MCP(), &tools.ToolDeps{
		Generator:       generator,
		Searcher:        refs.retriever,
		Indexer:         refs.indexer,
		Dialect:         dialect,
		Version:         cfg.Version,
		DefaultRefLimit: cfg.Generation.RefLimit,
		Logger:          logger,
	})

	validator, err := auth.NewJWKSClient(ctx, &auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		return fmt.Errorf("initialize JWKS client: %w", err)
	}
	defer validator.Close()
	authMiddleware := auth.NewMiddleware(validator, cfg.Auth.Required, logger)

	mux := http.NewServeMux()
	health := handlers.NewHealthHandler(cfg, connector, connManager, refs.retriever.Enabled(), logger)
	if refs.inspector != nil {
		health.WithReferenceIndex(refs.inspector, cfg.VectorStore.Collection)
	}
	health.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/mcp", authMiddleware.Wrap(
		middleware.RequestLogger(logger)(
			middleware.MCPRequestLogger(logger)(mcpServer.NewStreamableHTTPServer()))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_ = handlers.ErrorResponse(w, http.StatusNotFound, "not_found", "no route for "+r.URL.Path)
	})

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-text2sql",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// retrievalStack holds the reference retrieval components. All fields but
// close are nil when retrieval is disabled.
type retrievalStack struct {
	retriever *retrieval.Retriever
	indexer   *retrieval.Indexer
	inspector retrieval.IndexInspector
	close     func()
}

// setupRetrieval wires the embedder and vector store. Retrieval stays
// disabled when either is unconfigured.
func setupRetrieval(ctx context.Context, cfg *config.Config, logger *zap.Logger) (retrievalStack, error) {
	disabled := retrievalStack{close: func() {}}
	if cfg.Embedding.URI == "" || cfg.VectorStore.Backend == "" {
		logger.Info("Reference retrieval disabled")
		return disabled, nil
	}

	embedder, model, err := llm.NewEmbedder(cfg.Embedding.URI, cfg.Embedding.APIKey, logger)
	if err != nil {
		return disabled, err
	}

	var (
		index     retrieval.VectorIndex
		writer    retrieval.ReferenceWriter
		inspector retrieval.IndexInspector
		closer    = disabled.close
	)
	switch cfg.VectorStore.Backend {
	case "milvus":
		client := milvus.NewClient(config.ResolveURLForDocker(cfg.VectorStore.MilvusURI), cfg.VectorStore.MilvusToken, logger)
		index, writer, inspector = client, client, client
	case "sqlite":
		store, err := sqlitevec.Open(cfg.VectorStore.SQLitePath, cfg.VectorStore.Dimensions, logger)
		if err != nil {
			return disabled, err
		}
		index, writer, inspector = store, store, store
		closer = func() { _ = store.Close() }
	}

	rcfg := retrieval.Config{Collection: cfg.VectorStore.Collection, EmbeddingModel: model}
	stack := retrievalStack{
		retriever: retrieval.NewRetriever(embedder, index, rcfg, logger),
		indexer:   retrieval.NewIndexer(embedder, writer, rcfg, logger),
		inspector: inspector,
		close:     closer,
	}

	if cfg.VectorStore.SeedFile != "" {
		entries, err := retrieval.LoadSeedFile(cfg.VectorStore.SeedFile)
		if err != nil {
			closer()
			return disabled, err
		}
		added, err := stack.indexer.Add(ctx, entries)
		if err != nil {
			closer()
			return disabled, fmt.Errorf("index seed file: %w", err)
		}
		logger.Info("Seed references indexed",
			zap.String("file", cfg.VectorStore.SeedFile),
			zap.Int("references", added))
	}

	status, err := inspector.Inspect(ctx, cfg.VectorStore.Collection)
	switch {
	case err != nil:
		logger.Warn("Reference index unreachable, generation continues without references",
			zap.String("backend", cfg.VectorStore.Backend),
			zap.String("error", logging.SanitizeError(err)))
	case !status.Ready:
		logger.Warn("Reference collection missing, generation continues without references",
			zap.String("backend", status.Backend),
			zap.String("collection", status.Collection))
	default:
		logger.Info("Reference index ready",
			zap.String("backend", status.Backend),
			zap.String("collection", status.Collection),
			zap.Int("references", status.References))
	}

	return stack, nil
}
