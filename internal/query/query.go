// Package query loads and validates the query-definition document.
package query

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	apperrors "github.com/esprobe/esprobe/internal/pkg/errors"
)

// Spec is one named query definition. Immutable once loaded.
type Spec struct {
	// Name identifies the query in the ledger and the running stats.
	Name string `yaml:"name"`

	// Path is the index/resource pattern the query targets, joined onto
	// the configured base endpoint. May contain comma-separated patterns.
	Path string `yaml:"path"`

	// Body is the search payload, forwarded opaquely to the remote service.
	Body map[string]interface{} `yaml:"body"`
}

type document struct {
	Queries []Spec `yaml:"queries"`
}

// Load reads the ordered query list from a YAML document.
// The list order determines execution order within each sweep.
func Load(path string) ([]Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.LoadError(fmt.Sprintf("reading queries file %s", path), err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.LoadError(fmt.Sprintf("parsing queries file %s", path), err)
	}

	if len(doc.Queries) == 0 {
		return nil, apperrors.LoadError(fmt.Sprintf("queries file %s defines no queries", path), nil)
	}

	seen := make(map[string]bool, len(doc.Queries))
	for i, q := range doc.Queries {
		if q.Name == "" {
			return nil, apperrors.LoadError(fmt.Sprintf("query #%d has an empty name", i+1), nil)
		}
		if seen[q.Name] {
			return nil, apperrors.LoadError(fmt.Sprintf("duplicate query name %q", q.Name), nil)
		}
		seen[q.Name] = true

		if q.Path == "" {
			return nil, apperrors.LoadError(fmt.Sprintf("query %q has an empty path", q.Name), nil)
		}
	}

	return doc.Queries, nil
}
