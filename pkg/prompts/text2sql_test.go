package prompts

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/retrieval"
	"github.com/ekaya-inc/ekaya-text2sql/pkg/schema"
)

var usersDoc = schema.NewTableMetadata("users", "registered accounts", `CREATE TABLE users (
    id INTEGER NOT NULL,
    email VARCHAR, -- contact address
    PRIMARY KEY (id)
);`, []string{"(1, 'a@example.com')"}).Document()

var ordersDoc = schema.Placeholder("orders", fmt.Errorf("permission denied")).Document()

func TestAssemble_Snapshot(t *testing.T) {
	got := Assemble(PromptInput{
		Dialect:         "postgres",
		Documents:       []string{usersDoc, ordersDoc},
		RequiredColumns: []string{"email"},
		Predicates:      []string{"active users: deleted_at IS NULL"},
		References: retrieval.References{
			{Question: "find a user's email", SQL: "SELECT email FROM users"},
			{Question: "count users", SQL: "SELECT count(*) FROM users\n"},
		},
	})

	want := directInstructions + `

Dialect: postgres

# Database Schema
-- users: registered accounts
CREATE TABLE users (
    id INTEGER NOT NULL,
    email VARCHAR, -- contact address
    PRIMARY KEY (id)
);
-- Example Values:
(1, 'a@example.com')

-- orders: Can't get schema info for table orders: permission denied

# Required Columns
- email

# Predicates/Expression References
- active users: deleted_at IS NULL

# Similar Question & SQL References
Question: find a user's email
SQL: SELECT email FROM users

Question: count users
SQL: SELECT count(*) FROM users
`
	assert.Equal(t, want, got)
}

func TestAssemble_SectionOmission(t *testing.T) {
	refs := retrieval.References{{Question: "q", SQL: "SELECT 1"}}

	for mask := 0; mask < 8; mask++ {
		withColumns := mask&1 != 0
		withPredicates := mask&2 != 0
		withRefs := mask&4 != 0

		t.Run(fmt.Sprintf("columns=%v/predicates=%v/refs=%v", withColumns, withPredicates, withRefs), func(t *testing.T) {
			in := PromptInput{Dialect: "mysql", Documents: []string{usersDoc}}
			if withColumns {
				in.RequiredColumns = []string{"id"}
			}
			if withPredicates {
				in.Predicates = []string{"id > 10"}
			}
			if withRefs {
				in.References = refs
			}

			for _, got := range []string{Assemble(in), AssembleAgent(in), AssembleOptimize(in, "SELECT 2", "q")} {
				assert.Contains(t, got, "Dialect: mysql")
				assert.Contains(t, got, HeaderSchema)
				assert.Equal(t, withColumns, strings.Contains(got, HeaderColumns))
				assert.Equal(t, withPredicates, strings.Contains(got, HeaderPredicates))
				assert.Equal(t, withRefs, strings.Contains(got, HeaderReferences))
				assert.NotContains(t, got, "\n\n\n", "no blank sections")
			}
		})
	}
}

func TestAssemble_EmptyInputs(t *testing.T) {
	got := Assemble(PromptInput{
		Dialect:         "postgres",
		RequiredColumns: []string{"  ", ""},
		References:      retrieval.References{},
	})

	assert.Equal(t, directInstructions+"\n\nDialect: postgres\n", got)
	assert.NotContains(t, got, HeaderSchema)
	assert.NotContains(t, got, HeaderColumns)
}

func TestAssemble_Deterministic(t *testing.T) {
	in := PromptInput{
		Dialect:    "postgres",
		Documents:  []string{usersDoc, ordersDoc},
		Predicates: []string{"a", "b"},
		References: retrieval.References{{Question: "q1", SQL: "s1"}, {Question: "q2", SQL: "s2"}},
	}
	first := Assemble(in)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Assemble(in))
	}
}

func TestAssembleAgent(t *testing.T) {
	got := AssembleAgent(PromptInput{Dialect: "postgres", Documents: []string{usersDoc}})

	assert.True(t, strings.HasPrefix(got, agentInstructions))
	assert.Contains(t, got, HeaderAnswer+"\n"+answerContract)
	assert.Contains(t, got, `"final_sql"`)
	assert.Contains(t, got, `"request_more_information"`)
	assert.Contains(t, got, `"fail_reason"`)
	assert.Less(t, strings.Index(got, HeaderSchema), strings.Index(got, HeaderAnswer))
}

func TestAssembleOptimize(t *testing.T) {
	got := AssembleOptimize(PromptInput{Dialect: "postgres", Documents: []string{usersDoc}},
		"  SELECT * FROM user  ", "list users")

	assert.True(t, strings.HasPrefix(got, optimizeInstructions))
	assert.Contains(t, got, HeaderSQL+"\n```sql\nSELECT * FROM user\n```")
	assert.True(t, strings.HasSuffix(got, HeaderQuestion+"\nlist users\n"))

	got = AssembleOptimize(PromptInput{Dialect: "postgres"}, "", "")
	assert.NotContains(t, got, HeaderSQL)
	assert.NotContains(t, got, HeaderQuestion)
}
