package index

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
)

// PictureDocument is the denormalized view of a picture handed to the
// search index. Pointer fields mirror the nullable metadata columns and
// are omitted from the document when nil.
type PictureDocument struct {
	ID               string
	Grade            int
	ModifiedAt       int64
	TagIDs           []int64
	Orientation      *int
	Width            *int
	Height           *int
	CreationAt       *int64
	Make             *string
	Model            *string
	Exposure         *string
	RelativeAperture *string
	FocalLength      *string
}

// fields flattens the document into the exact field names the query
// language exposes
func (d PictureDocument) fields() map[string]interface{} {
	doc := map[string]interface{}{
		"id":                 d.ID,
		"grade":              d.Grade,
		"modified_timestamp": d.ModifiedAt,
	}

	if len(d.TagIDs) > 0 {
		tags := make([]string, len(d.TagIDs))
		for i, id := range d.TagIDs {
			tags[i] = strconv.FormatInt(id, 10)
		}
		doc["tag"] = tags
	}

	if d.Orientation != nil {
		doc["orientation"] = *d.Orientation
	}
	if d.Width != nil {
		doc["width"] = *d.Width
	}
	if d.Height != nil {
		doc["height"] = *d.Height
	}
	if d.CreationAt != nil {
		doc["creation_timestamp"] = *d.CreationAt
	}
	if d.Make != nil {
		doc["make"] = *d.Make
	}
	if d.Model != nil {
		doc["model"] = *d.Model
	}
	if d.Exposure != nil {
		doc["exposure"] = *d.Exposure
	}
	if d.RelativeAperture != nil {
		doc["relative_aperture"] = *d.RelativeAperture
	}
	if d.FocalLength != nil {
		doc["focal_length"] = *d.FocalLength
	}
	return doc
}

// PictureIndex wraps the bleve index holding one document per picture,
// keyed by the picture's content-hash id
type PictureIndex struct {
	idx bleve.Index
}

func buildPictureMapping() mapping.IndexMapping {
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name
	exact.Store = true

	num := bleve.NewNumericFieldMapping()
	num.Store = true

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("id", exact)
	doc.AddFieldMappingsAt("grade", num)
	doc.AddFieldMappingsAt("modified_timestamp", num)
	doc.AddFieldMappingsAt("tag", exact)
	doc.AddFieldMappingsAt("orientation", num)
	doc.AddFieldMappingsAt("width", num)
	doc.AddFieldMappingsAt("height", num)
	doc.AddFieldMappingsAt("creation_timestamp", num)
	doc.AddFieldMappingsAt("make", exact)
	doc.AddFieldMappingsAt("model", exact)
	doc.AddFieldMappingsAt("exposure", exact)
	doc.AddFieldMappingsAt("relative_aperture", exact)
	doc.AddFieldMappingsAt("focal_length", exact)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = keyword.Name
	return m
}

// OpenPictureIndex opens (or creates) the picture index at path
func OpenPictureIndex(path string) (*PictureIndex, error) {
	idx, err := openOrCreate(path, buildPictureMapping())
	if err != nil {
		return nil, err
	}
	return &PictureIndex{idx: idx}, nil
}

// Index upserts the document for a picture. Bleve replaces any existing
// document with the same id, which gives the delete-then-insert
// semantics updates need.
func (pi *PictureIndex) Index(doc PictureDocument) error {
	if err := pi.idx.Index(doc.ID, doc.fields()); err != nil {
		return fmt.Errorf("failed to index picture %s: %w", doc.ID, err)
	}
	return nil
}

// Delete removes a picture's document from the index
func (pi *PictureIndex) Delete(id string) error {
	if err := pi.idx.Delete(id); err != nil {
		return fmt.Errorf("failed to delete picture %s from index: %w", id, err)
	}
	return nil
}

// Search runs a caller-supplied query expression and returns at most
// limit picture ids ordered by creation timestamp. When currentID is
// non-empty and present in the result, its position in the ordered list
// is returned as well; otherwise the position is -1. Bleve searches see
// all previously indexed writes from this process, so a bank instance
// always reads its own writes.
func (pi *PictureIndex) Search(expr string, limit int, currentID string) ([]string, int, error) {
	query := bleve.NewQueryStringQuery(expr)
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	req.SortBy([]string{"creation_timestamp", "id"})

	res, err := pi.idx.Search(req)
	if err != nil {
		return nil, -1, fmt.Errorf("picture search failed for %q: %w", expr, err)
	}

	ids := make([]string, 0, len(res.Hits))
	pos := -1
	for i, hit := range res.Hits {
		if currentID != "" && hit.ID == currentID {
			pos = i
		}
		ids = append(ids, hit.ID)
	}
	return ids, pos, nil
}

// Count returns the number of indexed pictures
func (pi *PictureIndex) Count() (uint64, error) {
	return pi.idx.DocCount()
}

// Close releases the underlying bleve index
func (pi *PictureIndex) Close() error {
	return pi.idx.Close()
}
