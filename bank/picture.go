package bank

import (
	"sort"
	"sync"
	"time"

	"github.com/camden-git/picturebank/index"
	"github.com/camden-git/picturebank/media"
	"github.com/camden-git/picturebank/models"
)

const (
	MinGrade = 0
	MaxGrade = 5
)

// Picture is the in-memory object for one stored picture. Identity, the
// original format and the extracted metadata block are immutable; grade
// and the tag set mutate in place while the object is cache-resident.
// Every mutation stamps the modified time, marks the object dirty and
// hands it to the write-back queue; the per-object mutex serializes
// mutation against flushing so a flush never observes a torn write.
type Picture struct {
	id           string
	originalName string
	addedAt      time.Time
	meta         media.Metadata

	mu         sync.Mutex
	grade      int
	tagIDs     map[int64]struct{}
	modifiedAt time.Time
	dirty      bool
	onDirty    func(*Picture)
}

// newPicture constructs a fresh picture at ingestion time
func newPicture(id, originalName string, meta media.Metadata, now time.Time, onDirty func(*Picture)) *Picture {
	return &Picture{
		id:           id,
		originalName: originalName,
		addedAt:      now,
		meta:         meta,
		tagIDs:       make(map[int64]struct{}),
		modifiedAt:   now,
		onDirty:      onDirty,
	}
}

// pictureFromModel rebuilds a picture from its persisted row and tag ids
func pictureFromModel(m *models.Picture, tagIDs []int64, onDirty func(*Picture)) *Picture {
	p := &Picture{
		id:           m.ID,
		originalName: m.OriginalName,
		addedAt:      time.Unix(m.AddedAt, 0),
		meta: media.Metadata{
			Width:            m.Width,
			Height:           m.Height,
			CreationAt:       m.CreationAt,
			Orientation:      m.Orientation,
			Make:             m.Make,
			Model:            m.Model,
			Exposure:         m.Exposure,
			RelativeAperture: m.RelativeAperture,
			FocalLength:      m.FocalLength,
			Format:           m.Format,
		},
		grade:      m.Grade,
		tagIDs:     make(map[int64]struct{}, len(tagIDs)),
		modifiedAt: time.Unix(m.ModifiedAt, 0),
		onDirty:    onDirty,
	}
	for _, id := range tagIDs {
		p.tagIDs[id] = struct{}{}
	}
	return p
}

// ID returns the picture's content-hash id
func (p *Picture) ID() string { return p.id }

// OriginalName returns the base name the picture was ingested under
func (p *Picture) OriginalName() string { return p.originalName }

// Format returns the detected source format, e.g. "jpeg"
func (p *Picture) Format() string { return p.meta.Format }

// AddedAt returns the ingestion timestamp
func (p *Picture) AddedAt() time.Time { return p.addedAt }

// Metadata returns the immutable metadata block
func (p *Picture) Metadata() media.Metadata { return p.meta }

// Grade returns the current grade
func (p *Picture) Grade() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.grade
}

// ModifiedAt returns the last mutation time
func (p *Picture) ModifiedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modifiedAt
}

// Dirty reports whether the picture has unpersisted mutations
func (p *Picture) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// TagIDs returns the associated tag ids in ascending order
func (p *Picture) TagIDs() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tagIDsLocked()
}

// HasTag reports whether the tag is associated with the picture
func (p *Picture) HasTag(tagID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.tagIDs[tagID]
	return ok
}

// SetGrade changes the grade, marking the picture dirty when the value
// actually changes
func (p *Picture) SetGrade(grade int) error {
	if grade < MinGrade || grade > MaxGrade {
		return ErrInvalidGrade
	}
	p.mu.Lock()
	if p.grade == grade {
		p.mu.Unlock()
		return nil
	}
	p.grade = grade
	p.markModifiedLocked()
	p.mu.Unlock()
	p.notifyDirty()
	return nil
}

// AddTag associates a tag, reporting whether the set changed
func (p *Picture) AddTag(tagID int64) bool {
	p.mu.Lock()
	if _, ok := p.tagIDs[tagID]; ok {
		p.mu.Unlock()
		return false
	}
	p.tagIDs[tagID] = struct{}{}
	p.markModifiedLocked()
	p.mu.Unlock()
	p.notifyDirty()
	return true
}

// RemoveTag dissociates a tag, reporting whether the set changed
func (p *Picture) RemoveTag(tagID int64) bool {
	p.mu.Lock()
	if _, ok := p.tagIDs[tagID]; !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.tagIDs, tagID)
	p.markModifiedLocked()
	p.mu.Unlock()
	p.notifyDirty()
	return true
}

// seedTags applies the initial tag set during ingestion without marking
// the picture dirty; the following insert persists them
func (p *Picture) seedTags(tagIDs []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range tagIDs {
		p.tagIDs[id] = struct{}{}
	}
}

func (p *Picture) markModifiedLocked() {
	p.modifiedAt = time.Now()
	p.dirty = true
}

func (p *Picture) notifyDirty() {
	if p.onDirty != nil {
		p.onDirty(p)
	}
}

// flushState reads the fields the write-back debounce needs in one
// locked step
func (p *Picture) flushState() (dirty bool, modifiedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty, p.modifiedAt
}

// clearDirty drops unpersisted state, used when the picture is being
// deleted and a write-back would only resurrect it
func (p *Picture) clearDirty() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirty = false
}

func (p *Picture) tagIDsLocked() []int64 {
	ids := make([]int64, 0, len(p.tagIDs))
	for id := range p.tagIDs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// modelLocked builds the persistence row; p.mu must be held
func (p *Picture) modelLocked() *models.Picture {
	return &models.Picture{
		ID:               p.id,
		Grade:            p.grade,
		ModifiedAt:       p.modifiedAt.Unix(),
		AddedAt:          p.addedAt.Unix(),
		OriginalName:     p.originalName,
		Format:           p.meta.Format,
		Width:            p.meta.Width,
		Height:           p.meta.Height,
		CreationAt:       p.meta.CreationAt,
		Orientation:      p.meta.Orientation,
		Make:             p.meta.Make,
		Model:            p.meta.Model,
		Exposure:         p.meta.Exposure,
		RelativeAperture: p.meta.RelativeAperture,
		FocalLength:      p.meta.FocalLength,
	}
}

// documentLocked builds the search index document; p.mu must be held
func (p *Picture) documentLocked() index.PictureDocument {
	return index.PictureDocument{
		ID:               p.id,
		Grade:            p.grade,
		ModifiedAt:       p.modifiedAt.Unix(),
		TagIDs:           p.tagIDsLocked(),
		Orientation:      p.meta.Orientation,
		Width:            p.meta.Width,
		Height:           p.meta.Height,
		CreationAt:       p.meta.CreationAt,
		Make:             p.meta.Make,
		Model:            p.meta.Model,
		Exposure:         p.meta.Exposure,
		RelativeAperture: p.meta.RelativeAperture,
		FocalLength:      p.meta.FocalLength,
	}
}

// snapshot returns the row, tag ids and index document in one locked
// step, for insertion paths that persist outside the mutex
func (p *Picture) snapshot() (*models.Picture, []int64, index.PictureDocument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.modelLocked(), p.tagIDsLocked(), p.documentLocked()
}
