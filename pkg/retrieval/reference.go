package retrieval

// ReferencePair is a prior question with the SQL that answered it.
type ReferencePair struct {
	Question string `json:"question" yaml:"question"`
	SQL      string `json:"sql" yaml:"sql"`
}

// References is a rank-ordered list of reference pairs with unique questions.
type References []ReferencePair

// NewReferences keeps pairs in order, dropping later duplicates of a
// question and pairs with an empty question or SQL.
func NewReferences(pairs []ReferencePair) References {
	refs := make(References, 0, len(pairs))
	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		if p.Question == "" || p.SQL == "" {
			continue
		}
		if _, dup := seen[p.Question]; dup {
			continue
		}
		seen[p.Question] = struct{}{}
		refs = append(refs, p)
	}
	return refs
}

// Map returns question to SQL.
func (r References) Map() map[string]string {
	m := make(map[string]string, len(r))
	for _, p := range r {
		m[p.Question] = p.SQL
	}
	return m
}
