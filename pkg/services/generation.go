package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/llm"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/metrics"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/prompts"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/schema"
)

// MetadataBuilder builds table documents for one database.
type MetadataBuilder interface {
	Dialect() datasource.Dialect
	ListTables(ctx context.Context, schema string) ([]string, error)
	DescribeAll(ctx context.Context, tables []string, schema string, sampleLimit int) ([]schema.TableMetadata, error)
}

// ReferenceRetriever finds question/SQL pairs similar to a question.
type ReferenceRetriever interface {
	Retrieve(ctx context.Context, question string, limit int, tags []string) retrieval.References
}

// GenerateRequest describes one question to translate.
type GenerateRequest struct {
	Question string
	// Tables to describe; empty means every table in Schema.
	Tables     []string
	Columns    []string
	Predicates []string
	// Schema overrides the configured schema when set.
	Schema string
	// SampleLimit and RefLimit use the configured defaults when zero and
	// disable samples or references when negative.
	SampleLimit int
	RefLimit    int
	Tags        []string
}

// OptimizeRequest asks for a repaired version of SQL written for Question.
type OptimizeRequest struct {
	GenerateRequest
	SQL     string
	Problem string
}

// GenerationConfig holds request defaults.
type GenerationConfig struct {
	Schema      string
	SampleLimit int
	RefLimit    int
	// Timeout bounds a whole request; zero disables it.
	Timeout time.Duration
}

// GenerationService turns natural-language questions into SQL.
type GenerationService interface {
	// Generate returns the completion text, stripped of markdown fences, as SQL.
	Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
	// GenerateAgentic asks for a JSON answer that may request more
	// information or report failure instead of SQL.
	GenerateAgentic(ctx context.Context, req GenerateRequest) (*GenerationResult, error)
	// Optimize rewrites SQL to fix the problem described in req.Problem.
	Optimize(ctx context.Context, req OptimizeRequest) (*GenerationResult, error)
	// DescribeTables returns the table documents a request would use.
	DescribeTables(ctx context.Context, tables []string, schemaName string, sampleLimit int) ([]schema.TableMetadata, error)
}

type generationService struct {
	builder   MetadataBuilder
	retriever ReferenceRetriever
	completer llm.Completer
	cfg       GenerationConfig
	logger    *zap.Logger
}

// NewGenerationService creates a generation service. retriever may be nil,
// in which case prompts carry no references.
func NewGenerationService(
	builder MetadataBuilder,
	retriever ReferenceRetriever,
	completer llm.Completer,
	cfg GenerationConfig,
	logger *zap.Logger,
) GenerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &generationService{
		builder:   builder,
		retriever: retriever,
		completer: completer,
		cfg:       cfg,
		logger:    logger.Named("generation"),
	}
}

var _ GenerationService = (*generationService)(nil)

// promptContext is the per-request material every variant assembles from.
type promptContext struct {
	result *GenerationResult
	input  prompts.PromptInput
}

func (s *generationService) Generate(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	return s.run(ctx, VariantDirect, req, req.Question, prompts.Assemble, func(r *GenerationResult, content string) {
		r.SQL = llm.StripCodeFences(content)
		if r.SQL == "" {
			r.FailReason = "completion returned no SQL"
		}
	})
}

func (s *generationService) GenerateAgentic(ctx context.Context, req GenerateRequest) (*GenerationResult, error) {
	return s.run(ctx, VariantAgent, req, req.Question, prompts.AssembleAgent, func(r *GenerationResult, content string) {
		answer, err := parseAgentAnswer(content)
		if err != nil {
			r.FailReason = failReasonFor(err)
			s.logger.Warn("Unparseable agent answer",
				zap.String("request_id", r.RequestID.String()),
				zap.String("answer", logging.TruncateString(content, 200)))
			return
		}
		r.SQL = llm.StripCodeFences(answer.FinalSQL)
		r.RequestMoreInfo = strings.TrimSpace(answer.RequestMoreInformation)
		r.FailReason = strings.TrimSpace(answer.FailReason)
		if r.SQL != "" {
			r.RequestMoreInfo, r.FailReason = "", ""
		}
	})
}

func (s *generationService) Optimize(ctx context.Context, req OptimizeRequest) (*GenerationResult, error) {
	if strings.TrimSpace(req.SQL) == "" {
		return nil, fmt.Errorf("sql to optimize is required")
	}
	problem := strings.TrimSpace(req.Problem)
	if problem == "" {
		problem = "The SQL does not answer the question correctly. Fix it."
	}
	assemble := func(in prompts.PromptInput) string {
		return prompts.AssembleOptimize(in, req.SQL, req.Question)
	}
	return s.run(ctx, VariantOptimize, req.GenerateRequest, problem, assemble, func(r *GenerationResult, content string) {
		r.SQL = llm.StripCodeFences(content)
		if r.SQL == "" {
			r.FailReason = "completion returned no SQL"
		}
	})
}

func (s *generationService) DescribeTables(ctx context.Context, tables []string, schemaName string, sampleLimit int) ([]schema.TableMetadata, error) {
	schemaName = s.schemaName(schemaName)
	resolved, err := s.resolveTables(ctx, tables, schemaName)
	if err != nil {
		return nil, err
	}
	return s.builder.DescribeAll(ctx, resolved, schemaName, s.limit(sampleLimit, s.cfg.SampleLimit))
}

// run executes the shared pipeline: resolve tables, build metadata and
// retrieve references concurrently, assemble, complete, then post-process.
func (s *generationService) run(
	ctx context.Context,
	variant Variant,
	req GenerateRequest,
	userMessage string,
	assemble func(prompts.PromptInput) string,
	finish func(r *GenerationResult, content string),
) (*GenerationResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, fmt.Errorf("%w: question is required", apperrors.ErrInvalidRequest)
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	pc, err := s.prepare(ctx, variant, req)
	if err != nil {
		metrics.ObserveGeneration(string(variant), "error")
		return nil, err
	}
	result := pc.result
	result.Prompt = assemble(pc.input)

	s.logger.Debug("Prompt assembled",
		zap.String("request_id", result.RequestID.String()),
		zap.String("variant", string(variant)),
		zap.Int("tables", len(result.Tables)),
		zap.Int("references", result.References),
		zap.Int("prompt_len", len(result.Prompt)))

	completion, err := s.completer.Complete(ctx, llm.SystemAndUser(result.Prompt, userMessage))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ObserveGeneration(string(variant), "error")
			return nil, ctxErr
		}
		result.FailReason = "completion failed: " + logging.SanitizeError(err)
		s.logger.Error("Completion failed",
			zap.String("request_id", result.RequestID.String()),
			zap.String("model", s.completer.GetModel()),
			zap.String("error", logging.SanitizeError(err)))
	} else {
		finish(result, completion.Content)
	}

	metrics.ObserveGeneration(string(variant), result.Outcome())
	s.logger.Info("Generation finished",
		zap.String("request_id", result.RequestID.String()),
		zap.String("variant", string(variant)),
		zap.String("outcome", result.Outcome()),
		zap.String("sql", logging.SanitizeQuery(result.SQL)))
	return result, nil
}

func (s *generationService) prepare(ctx context.Context, variant Variant, req GenerateRequest) (*promptContext, error) {
	schemaName := s.schemaName(req.Schema)
	tables, err := s.resolveTables(ctx, req.Tables, schemaName)
	if err != nil {
		return nil, err
	}

	type metadataOutcome struct {
		docs []schema.TableMetadata
		err  error
	}
	metaCh := make(chan metadataOutcome, 1)
	refsCh := make(chan retrieval.References, 1)

	go func() {
		docs, err := s.builder.DescribeAll(ctx, tables, schemaName, s.limit(req.SampleLimit, s.cfg.SampleLimit))
		metaCh <- metadataOutcome{docs: docs, err: err}
	}()
	go func() {
		refsCh <- s.references(ctx, req)
	}()

	meta := <-metaCh
	refs := <-refsCh
	if meta.err != nil {
		return nil, meta.err
	}

	result := &GenerationResult{
		RequestID:  uuid.New(),
		Variant:    variant,
		Question:   req.Question,
		Tables:     tables,
		References: len(refs),
	}
	docs := make([]string, len(meta.docs))
	for i, m := range meta.docs {
		docs[i] = m.Document()
		if m.Degraded {
			result.DegradedTables = append(result.DegradedTables, m.TableName)
		}
	}

	return &promptContext{
		result: result,
		input: prompts.PromptInput{
			Dialect:         s.builder.Dialect().DisplayName(),
			Documents:       docs,
			RequiredColumns: req.Columns,
			Predicates:      req.Predicates,
			References:      refs,
		},
	}, nil
}

func (s *generationService) references(ctx context.Context, req GenerateRequest) retrieval.References {
	limit := s.limit(req.RefLimit, s.cfg.RefLimit)
	if s.retriever == nil || limit <= 0 {
		return retrieval.References{}
	}
	return s.retriever.Retrieve(ctx, req.Question, limit, req.Tags)
}

// resolveTables lists tables only when needed. A listing failure is fatal
// when no tables were requested; otherwise the requested names are used as
// given. Requested names that are all blank are rejected rather than read as
// every table.
func (s *generationService) resolveTables(ctx context.Context, requested []string, schemaName string) ([]string, error) {
	if len(requested) > 0 && !hasTableName(requested) {
		return nil, fmt.Errorf("%w: table names must not be blank", apperrors.ErrInvalidRequest)
	}
	available, err := s.builder.ListTables(ctx, schemaName)
	if err != nil {
		if len(requested) == 0 || errors.Is(err, apperrors.ErrUnsupportedDialect) || ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("Table listing failed, using requested names as given",
			zap.String("error", logging.SanitizeError(err)))
		return ResolveTables(requested, nil), nil
	}
	return ResolveTables(requested, available), nil
}

func (s *generationService) schemaName(override string) string {
	if override != "" {
		return override
	}
	return s.cfg.Schema
}

func (s *generationService) limit(requested, fallback int) int {
	switch {
	case requested < 0:
		return 0
	case requested == 0:
		return fallback
	default:
		return requested
	}
}

// agentAnswer is the JSON contract of the agent prompt.
type agentAnswer struct {
	FinalSQL               string `json:"final_sql"`
	RequestMoreInformation string `json:"request_more_information"`
	FailReason             string `json:"fail_reason"`
}

var errNotStandardAnswer = errors.New("answer is not a standard answer")

func parseAgentAnswer(content string) (agentAnswer, error) {
	answer, err := llm.ParseJSONResponse[agentAnswer](content)
	switch {
	case errors.Is(err, llm.ErrNoJSON):
		return answer, &apperrors.CompletionParseError{Raw: content, Err: err}
	case err != nil:
		return answer, &apperrors.CompletionParseError{Raw: content, Err: errNotStandardAnswer}
	}
	if answer.FinalSQL == "" && answer.RequestMoreInformation == "" && answer.FailReason == "" {
		return answer, &apperrors.CompletionParseError{Raw: content, Err: errNotStandardAnswer}
	}
	return answer, nil
}

func failReasonFor(err error) string {
	var parseErr *apperrors.CompletionParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if errors.Is(parseErr, errNotStandardAnswer) {
		return fmt.Sprintf("Answer is not a standard answer:\n `%s`", parseErr.Raw)
	}
	return fmt.Sprintf("Answer is not a valid JSON object:\n `%s`", parseErr.Raw)
}
