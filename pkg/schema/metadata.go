package schema

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-text2sql/pkg/logging"
)

// TableMetadata is the LLM-facing description of one table. The rendered
// document is computed once by NewTableMetadata and never changes.
type TableMetadata struct {
	TableName   string   `json:"table_name"`
	Description string   `json:"description"`
	DDL         string   `json:"ddl"`
	Samples     []string `json:"samples"`
	// Degraded marks a placeholder built from an introspection failure.
	Degraded bool `json:"degraded"`

	document string
}

// NewTableMetadata builds a TableMetadata and renders its document:
//
//	-- <table>: <description>
//	<ddl>
//	-- Example Values:
//	<sample>...
//
// The footer is omitted when there are no samples.
func NewTableMetadata(tableName, description, ddl string, samples []string) TableMetadata {
	m := TableMetadata{
		TableName:   tableName,
		Description: description,
		DDL:         ddl,
		Samples:     samples,
	}
	m.document = render(m)
	return m
}

// Placeholder converts an introspection failure into a document that still
// renders, carrying the cause in its description.
func Placeholder(tableName string, err error) TableMetadata {
	m := NewTableMetadata(tableName,
		fmt.Sprintf("Can't get schema info for table %s: %s", tableName, logging.SanitizeError(err)),
		"", nil)
	m.Degraded = true
	return m
}

func render(m TableMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- %s: %s\n", m.TableName, m.Description)
	b.WriteString(m.DDL)
	b.WriteString("\n")
	if len(m.Samples) > 0 {
		b.WriteString("-- Example Values:\n")
		b.WriteString(strings.Join(m.Samples, "\n"))
	}
	return b.String()
}

// Document returns the rendered document.
func (m TableMetadata) Document() string {
	if m.document == "" {
		return render(m)
	}
	return m.document
}

func (m TableMetadata) String() string {
	return m.Document()
}
