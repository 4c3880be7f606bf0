package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
)

// Section headers of the text-to-SQL system prompt.
const (
	HeaderSchema     = "# Database Schema"
	HeaderColumns    = "# Required Columns"
	HeaderPredicates = "# Predicates/Expression References"
	HeaderReferences = "# Similar Question & SQL References"
	HeaderAnswer     = "# Answer Format"
	HeaderSQL        = "# SQL To Optimize"
	HeaderQuestion   = "# Original Question"
)

// PromptInput is everything a text-to-SQL prompt is built from.
type PromptInput struct {
	Dialect string
	// Documents are rendered table metadata documents, in table order.
	Documents       []string
	RequiredColumns []string
	Predicates      []string
	References      retrieval.References
}

const directInstructions = `You are an expert SQL developer. Write one SQL query that answers the user's question.
Use only the tables and columns described in the database schema below.
When required columns are listed, the query must return them.
When predicate or expression references are listed, use them as written.
Reply with the SQL query only, without explanation.`

const agentInstructions = `You are an expert SQL developer. Write one SQL query that answers the user's question.
Use only the tables and columns described in the database schema below.
When required columns are listed, the query must return them.
When predicate or expression references are listed, use them as written.
If the question is ambiguous or the schema lacks information you need, ask for it instead of guessing.`

const optimizeInstructions = `You are an expert SQL developer. The SQL below was written to answer the original question
but has a problem, which the user describes. Rewrite the SQL so that it fixes the problem and still answers the question.
Use only the tables and columns described in the database schema below.
Reply with the corrected SQL query only, without explanation.`

const answerContract = `Respond with a single JSON object and nothing else:
{
  "final_sql": "<the SQL query, or an empty string>",
  "request_more_information": "<what you need to know from the user, or an empty string>",
  "fail_reason": "<why no SQL can be written, or an empty string>"
}
Fill exactly one of the three fields.`

// Assemble builds the system prompt for direct SQL generation. Sections
// with no content are left out entirely.
func Assemble(in PromptInput) string {
	return contextSections(directInstructions, in).String()
}

// AssembleAgent builds the system prompt for the JSON-answer variant, which
// may ask for clarification or report failure instead of returning SQL.
func AssembleAgent(in PromptInput) string {
	p := contextSections(agentInstructions, in)
	p.section(HeaderAnswer, answerContract)
	return p.String()
}

// AssembleOptimize builds the system prompt for repairing sql written for
// question. The problem description is sent as the user message.
func AssembleOptimize(in PromptInput, sql, question string) string {
	p := contextSections(optimizeInstructions, in)
	if s := strings.TrimSpace(sql); s != "" {
		p.section(HeaderSQL, "```sql\n"+s+"\n```")
	}
	p.section(HeaderQuestion, strings.TrimSpace(question))
	return p.String()
}

func contextSections(instructions string, in PromptInput) *promptBuilder {
	p := &promptBuilder{}
	p.section("", fmt.Sprintf("%s\n\nDialect: %s", instructions, in.Dialect))
	p.section(HeaderSchema, joinDocuments(in.Documents))
	p.section(HeaderColumns, bullets(in.RequiredColumns))
	p.section(HeaderPredicates, bullets(in.Predicates))
	p.section(HeaderReferences, referenceBlocks(in.References))
	return p
}

// promptBuilder appends named sections, dropping any whose body is empty.
type promptBuilder struct {
	sections []string
}

func (p *promptBuilder) section(header, body string) {
	if body == "" {
		return
	}
	if header == "" {
		p.sections = append(p.sections, body)
		return
	}
	p.sections = append(p.sections, header+"\n"+body)
}

func (p *promptBuilder) String() string {
	return strings.Join(p.sections, "\n\n") + "\n"
}

func joinDocuments(docs []string) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if d = strings.TrimRight(d, "\n"); d != "" {
			parts = append(parts, d)
		}
	}
	return strings.Join(parts, "\n\n")
}

func bullets(items []string) string {
	var b strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(item)
	}
	return b.String()
}

func referenceBlocks(refs retrieval.References) string {
	blocks := make([]string, 0, len(refs))
	for _, r := range refs {
		blocks = append(blocks, fmt.Sprintf("Question: %s\nSQL: %s", r.Question, strings.TrimSpace(r.SQL)))
	}
	return strings.Join(blocks, "\n\n")
}
