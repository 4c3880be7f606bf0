package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Variant names the post-processing applied to a completion.
type Variant string

const (
	VariantDirect   Variant = "direct"
	VariantAgent    Variant = "agent"
	VariantOptimize Variant = "optimize"
)

// GenerationResult is the outcome of one generation request. Exactly one of
// SQL or RequestMoreInfo/FailReason is set.
type GenerationResult struct {
	RequestID       uuid.UUID `json:"request_id"`
	Variant         Variant   `json:"variant"`
	Question        string    `json:"question"`
	Tables          []string  `json:"tables"`
	DegradedTables  []string  `json:"degraded_tables,omitempty"`
	References      int       `json:"references"`
	Prompt          string    `json:"prompt"`
	SQL             string    `json:"sql"`
	RequestMoreInfo string    `json:"request_more_info,omitempty"`
	FailReason      string    `json:"fail_reason,omitempty"`
}

// Outcome classifies the result for metrics.
func (r *GenerationResult) Outcome() string {
	switch {
	case r.SQL != "":
		return "sql"
	case r.RequestMoreInfo != "":
		return "request_more_info"
	default:
		return "failed"
	}
}

func (r *GenerationResult) String() string {
	sep := strings.Repeat("=", 37)

	var b strings.Builder
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "Question: %s\n", r.Question)
	fmt.Fprintf(&b, "Tables: [%s]\n", strings.Join(r.Tables, ", "))
	fmt.Fprintf(&b, "SQL: %s\n", r.SQL)
	if r.Variant == VariantAgent {
		fmt.Fprintf(&b, "Request: %s\n", r.RequestMoreInfo)
		fmt.Fprintf(&b, "Fail Reason: %s\n", r.FailReason)
	} else if r.FailReason != "" {
		fmt.Fprintf(&b, "Fail Reason: %s\n", r.FailReason)
	}
	b.WriteString(sep + "\n")
	return b.String()
}
