package services

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// ResolveTables maps requested table names onto the tables that exist. An
// empty request means every available table. Names match exactly, then
// case-insensitively, then by singular/plural form; names that match nothing
// are kept as given so they surface as placeholder documents.
func ResolveTables(requested, available []string) []string {
	if len(requested) == 0 {
		return append([]string(nil), available...)
	}

	exact := make(map[string]string, len(available))
	folded := make(map[string]string, len(available))
	for _, name := range available {
		exact[name] = name
		key := strings.ToLower(name)
		if _, ok := folded[key]; !ok {
			folded[key] = name
		}
	}

	resolved := make([]string, 0, len(requested))
	seen := make(map[string]bool, len(requested))
	for _, name := range requested {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		match := resolveTable(name, exact, folded)
		if seen[match] {
			continue
		}
		seen[match] = true
		resolved = append(resolved, match)
	}
	return resolved
}

func resolveTable(name string, exact, folded map[string]string) string {
	if match, ok := exact[name]; ok {
		return match
	}
	key := strings.ToLower(name)
	for _, candidate := range []string{key, inflection.Plural(key), inflection.Singular(key)} {
		if match, ok := folded[candidate]; ok {
			return match
		}
	}
	return name
}

func hasTableName(names []string) bool {
	for _, name := range names {
		if strings.TrimSpace(name) != "" {
			return true
		}
	}
	return false
}
