package repository

import (
	"github.com/camden-git/picturebank/models"
)

// PictureRepositoryInterface defines the methods for picture data operations
type PictureRepositoryInterface interface {
	Insert(pic *models.Picture, tagIDs []int64) error
	Update(pic *models.Picture, tagIDs []int64) error
	Delete(id string) error
	GetByID(id string) (*models.Picture, []int64, error)
	ListIDs(order string) ([]string, error)
}

// TagRepositoryInterface defines the methods for tag data operations.
// LoadAll and LoadParentEdges are two separate passes so the in-memory
// tag tree can be rebuilt without forward-reference ordering constraints.
type TagRepositoryInterface interface {
	Insert(tag *models.Tag) error
	Update(tag *models.Tag) error
	Delete(id int64) error
	DeleteAssociations(tagID int64) error
	LoadAll() ([]models.Tag, error)
	LoadParentEdges() (map[int64]int64, error)
}
