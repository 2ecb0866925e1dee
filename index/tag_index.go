package index

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// TagIndex wraps the bleve index holding one document per tag, keyed by
// the decimal form of the tag id
type TagIndex struct {
	idx bleve.Index
}

func buildTagMapping() mapping.IndexMapping {
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = true

	text := bleve.NewTextFieldMapping()
	text.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("id", exact)
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("description", text)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// OpenTagIndex opens (or creates) the tag index at path
func OpenTagIndex(path string) (*TagIndex, error) {
	idx, err := openOrCreate(path, buildTagMapping())
	if err != nil {
		return nil, err
	}
	return &TagIndex{idx: idx}, nil
}

// Index upserts a tag's document
func (ti *TagIndex) Index(id int64, name, description string) error {
	key := strconv.FormatInt(id, 10)
	doc := map[string]interface{}{
		"id":          key,
		"name":        name,
		"description": description,
	}
	if err := ti.idx.Index(key, doc); err != nil {
		return fmt.Errorf("failed to index tag %d: %w", id, err)
	}
	return nil
}

// Delete removes a tag's document from the index
func (ti *TagIndex) Delete(id int64) error {
	if err := ti.idx.Delete(strconv.FormatInt(id, 10)); err != nil {
		return fmt.Errorf("failed to delete tag %d from index: %w", id, err)
	}
	return nil
}

// Search runs a query expression over tag documents and returns matching
// tag ids
func (ti *TagIndex) Search(expr string, limit int) ([]int64, error) {
	query := bleve.NewQueryStringQuery(expr)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)

	res, err := ti.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("tag search failed for %q: %w", expr, err)
	}

	ids := make([]int64, 0, len(res.Hits))
	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Count returns the number of indexed tags
func (ti *TagIndex) Count() (uint64, error) {
	return ti.idx.DocCount()
}

// Close releases the underlying bleve index
func (ti *TagIndex) Close() error {
	return ti.idx.Close()
}
