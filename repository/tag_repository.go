package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/camden-git/picturebank/models"
)

// TagRepository handles database operations for Tag entities. The
// in-memory tag tree in the tags package is the authoritative runtime
// view; this repository only persists it.
type TagRepository struct {
	DB *gorm.DB
}

// NewTagRepository creates a new instance of TagRepository
func NewTagRepository(db *gorm.DB) *TagRepository {
	return &TagRepository{DB: db}
}

// Insert creates a new tag row with its pre-assigned id
func (r *TagRepository) Insert(tag *models.Tag) error {
	if err := r.DB.Create(tag).Error; err != nil {
		return fmt.Errorf("failed to insert tag %d (%s): %w", tag.ID, tag.Name, err)
	}
	return nil
}

// Update persists all fields of a tag row
func (r *TagRepository) Update(tag *models.Tag) error {
	result := r.DB.Model(&models.Tag{}).Where("id = ?", tag.ID).Updates(map[string]interface{}{
		"name":        tag.Name,
		"description": tag.Description,
		"parent_id":   tag.ParentID,
		"selectable":  tag.Selectable,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update tag %d: %w", tag.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a tag row. Picture associations must be removed first
// via DeleteAssociations; no cascade is relied upon.
func (r *TagRepository) Delete(id int64) error {
	result := r.DB.Where("id = ?", id).Delete(&models.Tag{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete tag %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAssociations removes every picture association for a tag
func (r *TagRepository) DeleteAssociations(tagID int64) error {
	if err := r.DB.Where("tag_id = ?", tagID).Delete(&models.PictureTag{}).Error; err != nil {
		return fmt.Errorf("failed to delete associations for tag %d: %w", tagID, err)
	}
	return nil
}

// LoadAll returns every persisted tag row, ordered by id. This is the
// first of the two load passes; parent wiring happens afterwards via
// LoadParentEdges.
func (r *TagRepository) LoadAll() ([]models.Tag, error) {
	var tags []models.Tag
	if err := r.DB.Order("id ASC").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("failed to load tags: %w", err)
	}
	return tags, nil
}

// LoadParentEdges returns the tag id -> parent id relation as a second
// pass, so edges are applied only after all nodes exist
func (r *TagRepository) LoadParentEdges() (map[int64]int64, error) {
	rows, err := r.DB.Model(&models.Tag{}).Select("id", "parent_id").Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to load tag parent edges: %w", err)
	}
	defer rows.Close()

	edges := make(map[int64]int64)
	for rows.Next() {
		var id, parentID int64
		if err := rows.Scan(&id, &parentID); err != nil {
			return nil, fmt.Errorf("failed to scan tag parent edge: %w", err)
		}
		edges[id] = parentID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag parent edges: %w", err)
	}
	return edges, nil
}
