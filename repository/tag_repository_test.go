package repository

import (
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/camden-git/picturebank/models"
)

func TestTagInsertAndLoadAll(t *testing.T) {
	repo := NewTagRepository(setupTestDB(t))

	rows := []models.Tag{
		{ID: 2, Name: "family", ParentID: 0, Selectable: true},
		{ID: 1, Name: "vacation", Description: "trips", ParentID: 0, Selectable: true},
		{ID: 3, Name: "beach", ParentID: 1, Selectable: true},
	}
	for i := range rows {
		if err := repo.Insert(&rows[i]); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(loaded))
	}
	// ordered by id
	if loaded[0].ID != 1 || loaded[1].ID != 2 || loaded[2].ID != 3 {
		t.Errorf("unexpected order %v", loaded)
	}
	if loaded[0].Description != "trips" {
		t.Errorf("description not persisted: %+v", loaded[0])
	}
}

func TestTagLoadParentEdges(t *testing.T) {
	repo := NewTagRepository(setupTestDB(t))

	repo.Insert(&models.Tag{ID: 1, Name: "a", ParentID: 0})
	repo.Insert(&models.Tag{ID: 2, Name: "b", ParentID: 1})

	edges, err := repo.LoadParentEdges()
	if err != nil {
		t.Fatalf("LoadParentEdges failed: %v", err)
	}
	if edges[1] != 0 || edges[2] != 1 {
		t.Errorf("unexpected edges %v", edges)
	}
}

func TestTagUpdate(t *testing.T) {
	repo := NewTagRepository(setupTestDB(t))

	repo.Insert(&models.Tag{ID: 1, Name: "old", ParentID: 0, Selectable: true})
	if err := repo.Update(&models.Tag{ID: 1, Name: "new", Description: "d", ParentID: 0, Selectable: false}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	loaded, err := repo.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if loaded[0].Name != "new" || loaded[0].Selectable {
		t.Errorf("update not applied: %+v", loaded[0])
	}

	err = repo.Update(&models.Tag{ID: 99, Name: "ghost"})
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestTagDelete(t *testing.T) {
	repo := NewTagRepository(setupTestDB(t))

	repo.Insert(&models.Tag{ID: 1, Name: "doomed", ParentID: 0})
	if err := repo.Delete(1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := repo.Delete(1); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound on second delete, got %v", err)
	}
}

func TestTagDeleteAssociations(t *testing.T) {
	db := setupTestDB(t)
	tagRepo := NewTagRepository(db)
	picRepo := NewPictureRepository(db)

	tagRepo.Insert(&models.Tag{ID: 1, Name: "t", ParentID: 0})
	picRepo.Insert(&models.Picture{ID: "abc", OriginalName: "a.jpg", Format: "jpeg"}, []int64{1})

	if err := tagRepo.DeleteAssociations(1); err != nil {
		t.Fatalf("DeleteAssociations failed: %v", err)
	}

	_, tagIDs, err := picRepo.GetByID("abc")
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if len(tagIDs) != 0 {
		t.Errorf("expected associations gone, got %v", tagIDs)
	}
}
