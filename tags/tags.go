// Package tags holds the in-memory hierarchical tag catalog. Tags form a
// tree rooted at the implicit root tag (id 0); parent and children are
// derived lookups into an id-keyed arena, never live object pointers, so
// the tree carries no ownership cycles.
package tags

import "errors"

// RootTagID is the id of the implicit, non-selectable root tag. It is
// synthesized at load time and never persisted.
const RootTagID int64 = 0

var (
	ErrEmptyName     = errors.New("tag name must not be empty")
	ErrDuplicateName = errors.New("tag name already in use")
	ErrIDExhausted   = errors.New("tag id space exhausted")
	ErrRootImmutable = errors.New("root tag cannot be modified or removed")
	ErrUnknownTag    = errors.New("unknown tag")
	ErrCycle         = errors.New("parent change would create a cycle")
)

// Tag is one node of the tag tree. ParentID refers into the repository
// arena; children are resolved through the repository at call time.
type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    int64  `json:"parent_id"`
	Selectable  bool   `json:"selectable"`
}

// Indexer is the slice of the search index the tag repository mirrors
// itself into
type Indexer interface {
	Index(id int64, name, description string) error
	Delete(id int64) error
}
