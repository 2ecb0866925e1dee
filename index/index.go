// Package index wraps the two bleve indexes backing picture search: one
// for pictures, one for tags. The two indexes are independently
// lifecycled and consume documents built from picture/tag state; nothing
// in here reaches back into the rest of the bank.
package index

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// openOrCreate opens an existing bleve index at path or creates a fresh
// one with the given mapping
func openOrCreate(path string, m mapping.IndexMapping) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, m)
		if err != nil {
			return nil, fmt.Errorf("failed to create index at %s: %w", path, err)
		}
		return idx, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index at %s: %w", path, err)
	}
	return idx, nil
}
