package repository

import (
	"fmt"
	"sort"

	sq "github.com/Masterminds/squirrel"
	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/camden-git/picturebank/database"
	"github.com/camden-git/picturebank/models"
)

// PictureRepository handles database operations for Picture entities
type PictureRepository struct {
	DB *gorm.DB
}

// NewPictureRepository creates a new instance of PictureRepository
func NewPictureRepository(db *gorm.DB) *PictureRepository {
	return &PictureRepository{DB: db}
}

// Insert creates the picture row and its initial tag associations in one
// transaction
func (r *PictureRepository) Insert(pic *models.Picture, tagIDs []int64) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pic).Error; err != nil {
			return fmt.Errorf("failed to insert picture %s: %w", pic.ID, err)
		}
		return createAssociations(tx, pic.ID, tagIDs)
	})
}

// Update persists a picture's mutable fields and replaces all of its tag
// associations; associations are never diffed incrementally
func (r *PictureRepository) Update(pic *models.Picture, tagIDs []int64) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"grade":              pic.Grade,
			"modified_timestamp": pic.ModifiedAt,
		}
		result := tx.Model(&models.Picture{}).Where("id = ?", pic.ID).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to update picture %s: %w", pic.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Where("picture_id = ?", pic.ID).Delete(&models.PictureTag{}).Error; err != nil {
			return fmt.Errorf("failed to clear tag associations for %s: %w", pic.ID, err)
		}
		return createAssociations(tx, pic.ID, tagIDs)
	})
}

// Delete removes a picture row and its tag associations. Associations go
// first; no foreign-key cascade is relied upon.
func (r *PictureRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("picture_id = ?", id).Delete(&models.PictureTag{}).Error; err != nil {
			return fmt.Errorf("failed to delete tag associations for %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Picture{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete picture %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// GetByID retrieves a picture's metadata row and its associated tag ids
func (r *PictureRepository) GetByID(id string) (*models.Picture, []int64, error) {
	var pic models.Picture
	err := r.DB.Where("id = ?", id).First(&pic).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to get picture %s: %w", id, err)
	}

	var tagIDs []int64
	if err := r.DB.Model(&models.PictureTag{}).Where("picture_id = ?", id).Pluck("tag_id", &tagIDs).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to get tag associations for %s: %w", id, err)
	}
	return &pic, tagIDs, nil
}

// ListIDs loads the full id list in the requested order. Natural name
// ordering cannot be expressed in SQLite collations, so that variant sorts
// in memory after the query.
func (r *PictureRepository) ListIDs(order string) ([]string, error) {
	if !database.IsValidSortOrder(order) {
		order = database.DefaultSortOrder
	}

	builder := sq.Select("id", "original_name").From("picture")
	switch order {
	case database.SortAddedDesc:
		builder = builder.OrderBy("adding_timestamp DESC", "id ASC")
	case database.SortNameNatural:
		builder = builder.OrderBy("id ASC")
	default:
		builder = builder.OrderBy("adding_timestamp ASC", "id ASC")
	}

	sqlStr, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL query for ListIDs: %w", err)
	}

	rows, err := r.DB.Raw(sqlStr, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query picture id list: %w", err)
	}
	defer rows.Close()

	type entry struct {
		id   string
		name string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.id, &e.name); err != nil {
			return nil, fmt.Errorf("failed to scan picture id row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate picture id rows: %w", err)
	}

	if order == database.SortNameNatural {
		sort.SliceStable(entries, func(i, j int) bool {
			return natsort.Compare(entries[i].name, entries[j].name)
		})
	}

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func createAssociations(tx *gorm.DB, pictureID string, tagIDs []int64) error {
	if len(tagIDs) == 0 {
		return nil
	}
	assoc := make([]models.PictureTag, len(tagIDs))
	for i, tagID := range tagIDs {
		assoc[i] = models.PictureTag{TagID: tagID, PictureID: pictureID}
	}
	if err := tx.Create(&assoc).Error; err != nil {
		return fmt.Errorf("failed to insert tag associations for %s: %w", pictureID, err)
	}
	return nil
}
