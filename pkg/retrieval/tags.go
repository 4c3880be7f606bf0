package retrieval

import (
	"strconv"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
	"go.uber.org/zap"
)

// SafeTags drops empty tags and tags libinjection flags as SQL injection
// payloads. Order is preserved and duplicates removed.
func SafeTags(tags []string, logger *zap.Logger) []string {
	if logger == nil {
		logger = zap.NewNop()
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(tag); isSQLi {
			logger.Warn("dropping suspicious reference tag",
				zap.String("fingerprint", string(fingerprint)),
			)
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// TagFilter restricts a search to untagged entries and entries sharing one
// of Tags. Active stays set when every requested tag was dropped, so such a
// filter keeps untagged entries only. The zero value matches everything.
type TagFilter struct {
	Active bool
	Tags   []string
}

// NewTagFilter builds the filter for requested tags. Blank tags do not
// activate it; suspicious ones do but never reach Tags.
func NewTagFilter(requested []string, logger *zap.Logger) TagFilter {
	active := false
	for _, tag := range requested {
		if strings.TrimSpace(tag) != "" {
			active = true
			break
		}
	}
	if !active {
		return TagFilter{}
	}
	return TagFilter{Active: true, Tags: SafeTags(requested, logger)}
}

// Expression renders the filter as a Milvus boolean expression, or "" when
// the filter is inactive.
//
//	ARRAY_LENGTH(tags) == 0 || ARRAY_CONTAINS_ANY(tags, ["a", "b"])
func (f TagFilter) Expression() string {
	if !f.Active {
		return ""
	}
	if len(f.Tags) == 0 {
		return "ARRAY_LENGTH(tags) == 0"
	}
	quoted := make([]string, len(f.Tags))
	for i, tag := range f.Tags {
		quoted[i] = strconv.Quote(tag)
	}
	return "ARRAY_LENGTH(tags) == 0 || ARRAY_CONTAINS_ANY(tags, [" + strings.Join(quoted, ", ") + "])"
}

// Matches reports whether an entry tagged entryTags passes the filter.
// Backends without a filter language use it after fetching.
func (f TagFilter) Matches(entryTags []string) bool {
	if !f.Active || len(entryTags) == 0 {
		return true
	}
	for _, want := range f.Tags {
		for _, have := range entryTags {
			if want == have {
				return true
			}
		}
	}
	return false
}
