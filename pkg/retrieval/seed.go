package retrieval

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedEntry is one reference in a seed file.
type SeedEntry struct {
	Question string   `yaml:"question" json:"question"`
	SQL      string   `yaml:"sql" json:"sql"`
	Tags     []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

type seedFile struct {
	References []SeedEntry `yaml:"references"`
}

// LoadSeedFile reads references from a YAML file of the form
//
//	references:
//	  - question: How many users signed up today?
//	    sql: SELECT count(*) FROM users WHERE created_at >= current_date
//	    tags: [users]
func LoadSeedFile(path string) ([]SeedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.
func ParseSeed(data []byte) ([]SeedEntry, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, e := range f.References {
		if e.Question == "" || e.SQL == "" {
			return nil, fmt.Errorf("seed reference %d: question and sql are required", i)
		}
	}
	return f.References, nil
}
