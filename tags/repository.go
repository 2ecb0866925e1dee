package tags

import (
	"fmt"
	"log"
	"math"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/camden-git/picturebank/models"
	"github.com/camden-git/picturebank/repository"
)

// Repository is the in-memory tag catalog for one bank: an id-keyed
// arena with by-id, by-name and sorted enumeration views, backed by the
// persistence layer and mirrored into the search index. All access goes
// through one RWMutex; change notifications fire outside of it.
type Repository struct {
	mu       sync.RWMutex
	store    repository.TagRepositoryInterface
	index    Indexer
	byID     map[int64]*Tag
	byName   map[string]*Tag
	children map[int64]map[int64]struct{}
	nextID   int64

	recent *lru.Cache[int64, *Tag]

	listenerMu sync.Mutex
	listeners  []func()
}

// NewRepository builds the catalog, synthesizes the root tag and loads
// all persisted tags in two passes (rows, then parent edges)
func NewRepository(store repository.TagRepositoryInterface, index Indexer, recentSize int) (*Repository, error) {
	if recentSize <= 0 {
		recentSize = 10
	}
	recent, err := lru.New[int64, *Tag](recentSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create recently-used tag cache: %w", err)
	}

	r := &Repository{
		store:    store,
		index:    index,
		byID:     make(map[int64]*Tag),
		byName:   make(map[string]*Tag),
		children: make(map[int64]map[int64]struct{}),
		nextID:   1,
		recent:   recent,
	}

	// the synthesized root stays out of the by-name index: it is only
	// addressable by id, and its display name does not shadow user tags
	root := &Tag{ID: RootTagID, Name: "root", Selectable: false, ParentID: RootTagID}
	r.byID[RootTagID] = root
	r.children[RootTagID] = make(map[int64]struct{})

	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// load rebuilds the tree from the store. First pass registers all nodes,
// second pass applies parent edges; a stored parent id that no longer
// resolves attaches the tag to root instead of failing the load.
func (r *Repository) load() error {
	rows, err := r.store.LoadAll()
	if err != nil {
		return fmt.Errorf("failed to load tag rows: %w", err)
	}
	for _, row := range rows {
		if row.ID == RootTagID {
			continue
		}
		tag := &Tag{
			ID:          row.ID,
			Name:        row.Name,
			Description: row.Description,
			ParentID:    RootTagID,
			Selectable:  row.Selectable,
		}
		r.byID[tag.ID] = tag
		r.byName[tag.Name] = tag
		r.children[tag.ID] = make(map[int64]struct{})
		if tag.ID >= r.nextID {
			r.nextID = tag.ID + 1
		}
	}

	edges, err := r.store.LoadParentEdges()
	if err != nil {
		return fmt.Errorf("failed to load tag parent edges: %w", err)
	}
	for id, parentID := range edges {
		tag, ok := r.byID[id]
		if !ok || id == RootTagID {
			continue
		}
		if _, ok := r.byID[parentID]; !ok {
			log.Printf("tags: parent %d of tag %d not found, attaching to root", parentID, id)
			parentID = RootTagID
		}
		tag.ParentID = parentID
		r.children[parentID][id] = struct{}{}
	}

	log.Printf("tags: loaded %d tag(s), next free id %d", len(rows), r.nextID)
	return nil
}

// AddTag creates a new tag under parent (nil means root), persists it,
// indexes it and notifies listeners. The next free id is assigned from a
// monotonic high-water mark.
func (r *Repository) AddTag(parent *Tag, name, description string, selectable bool) (*Tag, error) {
	r.mu.Lock()
	if name == "" {
		r.mu.Unlock()
		return nil, ErrEmptyName
	}
	if _, exists := r.byName[name]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%q: %w", name, ErrDuplicateName)
	}
	parentID := RootTagID
	if parent != nil {
		if _, ok := r.byID[parent.ID]; !ok {
			r.mu.Unlock()
			return nil, fmt.Errorf("parent %d: %w", parent.ID, ErrUnknownTag)
		}
		parentID = parent.ID
	}
	if r.nextID == math.MaxInt64 {
		r.mu.Unlock()
		return nil, ErrIDExhausted
	}

	tag := &Tag{
		ID:          r.nextID,
		Name:        name,
		Description: description,
		ParentID:    parentID,
		Selectable:  selectable,
	}

	if err := r.store.Insert(toModel(tag)); err != nil {
		r.mu.Unlock()
		return nil, err
	}

	r.nextID++
	r.byID[tag.ID] = tag
	r.byName[tag.Name] = tag
	r.children[tag.ID] = make(map[int64]struct{})
	r.children[parentID][tag.ID] = struct{}{}
	result := *tag
	r.mu.Unlock()

	if err := r.index.Index(tag.ID, tag.Name, tag.Description); err != nil {
		log.Printf("tags: failed to index tag %d: %v", tag.ID, err)
	}
	r.notify()
	return &result, nil
}

// EditTag compares each field against the live tag and applies only real
// changes. A parent change detaches the tag from its old parent's child
// set, attaches it to the new one and is rejected if it would create a
// cycle. Unchanged calls do not touch the store, the index or the
// listeners.
func (r *Repository) EditTag(id int64, name, description string, selectable bool, parentID int64) error {
	r.mu.Lock()
	if id == RootTagID {
		r.mu.Unlock()
		return ErrRootImmutable
	}
	tag, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("tag %d: %w", id, ErrUnknownTag)
	}

	if name == "" {
		r.mu.Unlock()
		return ErrEmptyName
	}
	if other, exists := r.byName[name]; exists && other.ID != id {
		r.mu.Unlock()
		return fmt.Errorf("%q: %w", name, ErrDuplicateName)
	}

	if parentID != tag.ParentID {
		if _, ok := r.byID[parentID]; !ok {
			r.mu.Unlock()
			return fmt.Errorf("parent %d: %w", parentID, ErrUnknownTag)
		}
		if r.wouldCycle(id, parentID) {
			r.mu.Unlock()
			return fmt.Errorf("tag %d under %d: %w", id, parentID, ErrCycle)
		}
	}

	changed := tag.Name != name || tag.Description != description ||
		tag.Selectable != selectable || tag.ParentID != parentID
	if !changed {
		r.mu.Unlock()
		return nil
	}

	updated := &Tag{ID: id, Name: name, Description: description, ParentID: parentID, Selectable: selectable}
	if err := r.store.Update(toModel(updated)); err != nil {
		r.mu.Unlock()
		return err
	}

	if tag.Name != name {
		delete(r.byName, tag.Name)
		r.byName[name] = tag
	}
	if tag.ParentID != parentID {
		delete(r.children[tag.ParentID], id)
		r.children[parentID][id] = struct{}{}
	}
	tag.Name = name
	tag.Description = description
	tag.Selectable = selectable
	tag.ParentID = parentID
	r.mu.Unlock()

	if err := r.index.Index(id, name, description); err != nil {
		log.Printf("tags: failed to reindex tag %d: %v", id, err)
	}
	r.notify()
	return nil
}

// wouldCycle reports whether re-parenting id under newParent would make
// the tree unreachable from root. Walks the parent chain; the chain is
// bounded by the arena size.
func (r *Repository) wouldCycle(id, newParent int64) bool {
	cur := newParent
	for cur != RootTagID {
		if cur == id {
			return true
		}
		tag, ok := r.byID[cur]
		if !ok {
			return false
		}
		cur = tag.ParentID
	}
	return false
}

// RemoveTag deletes a tag. Its children are re-parented to root, never
// orphaned or cascaded; its persisted row, picture associations and
// index document are removed.
func (r *Repository) RemoveTag(id int64) error {
	r.mu.Lock()
	if id == RootTagID {
		r.mu.Unlock()
		return ErrRootImmutable
	}
	tag, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("tag %d: %w", id, ErrUnknownTag)
	}

	for childID := range r.children[id] {
		child := r.byID[childID]
		child.ParentID = RootTagID
		r.children[RootTagID][childID] = struct{}{}
		if err := r.store.Update(toModel(child)); err != nil {
			log.Printf("tags: failed to persist re-parented tag %d: %v", childID, err)
		}
	}

	if err := r.store.DeleteAssociations(id); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.store.Delete(id); err != nil {
		r.mu.Unlock()
		return err
	}

	delete(r.children[tag.ParentID], id)
	delete(r.children, id)
	delete(r.byID, id)
	delete(r.byName, tag.Name)
	r.recent.Remove(id)
	r.mu.Unlock()

	if err := r.index.Delete(id); err != nil {
		log.Printf("tags: failed to remove tag %d from index: %v", id, err)
	}
	r.notify()
	return nil
}

// GetTag returns a copy of the tag with the given id
func (r *Repository) GetTag(id int64) (*Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("tag %d: %w", id, ErrUnknownTag)
	}
	c := *tag
	return &c, nil
}

// GetTagByName returns a copy of the tag with the given name
// (case-sensitive exact match)
func (r *Repository) GetTagByName(name string) (*Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("tag %q: %w", name, ErrUnknownTag)
	}
	c := *tag
	return &c, nil
}

// RootTag returns the implicit root tag
func (r *Repository) RootTag() *Tag {
	root, _ := r.GetTag(RootTagID)
	return root
}

// HasTagNamed reports whether a tag with that exact name exists
func (r *Repository) HasTagNamed(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byName[name]
	return ok
}

// TagSet returns all tags except root, sorted alphabetically by name
func (r *Repository) TagSet() []*Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := make([]*Tag, 0, len(r.byID)-1)
	for id, tag := range r.byID {
		if id == RootTagID {
			continue
		}
		c := *tag
		set = append(set, &c)
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Name < set[j].Name })
	return set
}

// Parent resolves a tag's parent through the arena
func (r *Repository) Parent(id int64) (*Tag, error) {
	r.mu.RLock()
	tag, ok := r.byID[id]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("tag %d: %w", id, ErrUnknownTag)
	}
	parentID := tag.ParentID
	r.mu.RUnlock()
	return r.GetTag(parentID)
}

// Children resolves a tag's child set through the arena, sorted by name
func (r *Repository) Children(id int64) ([]*Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	childSet, ok := r.children[id]
	if !ok {
		return nil, fmt.Errorf("tag %d: %w", id, ErrUnknownTag)
	}
	result := make([]*Tag, 0, len(childSet))
	for childID := range childSet {
		c := *r.byID[childID]
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// ResolveAll maps tag ids to tags, silently skipping ids that no longer
// resolve (the tag may have been removed after the association was
// written)
func (r *Repository) ResolveAll(ids []int64) []*Tag {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Tag, 0, len(ids))
	for _, id := range ids {
		if tag, ok := r.byID[id]; ok {
			c := *tag
			result = append(result, &c)
		}
	}
	return result
}

// AddLastUsed records a tag as most recently applied; the bounded LRU
// evicts the least recently used entry when full
func (r *Repository) AddLastUsed(tag *Tag) {
	if tag == nil || tag.ID == RootTagID {
		return
	}
	c := *tag
	r.recent.Add(tag.ID, &c)
}

// RecentlyUsed returns the recently-applied tags, most recent first
func (r *Repository) RecentlyUsed() []*Tag {
	keys := r.recent.Keys()
	result := make([]*Tag, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		if tag, ok := r.recent.Peek(keys[i]); ok {
			result = append(result, tag)
		}
	}
	return result
}

// OnChange registers a listener invoked after every successful add, edit
// or removal
func (r *Repository) OnChange(fn func()) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Repository) notify() {
	r.listenerMu.Lock()
	listeners := make([]func(), len(r.listeners))
	copy(listeners, r.listeners)
	r.listenerMu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func toModel(tag *Tag) *models.Tag {
	return &models.Tag{
		ID:          tag.ID,
		Name:        tag.Name,
		Description: tag.Description,
		ParentID:    tag.ParentID,
		Selectable:  tag.Selectable,
	}
}
