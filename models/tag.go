package models

// Tag represents a tag row in the database using GORM. Tag ids are
// assigned by the in-memory tag repository, never by the database, so
// autoincrement is disabled. The implicit root tag (id 0) is synthesized
// at load time and never persisted.
type Tag struct {
	ID          int64  `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"" json:"description"`
	ParentID    int64  `gorm:"not null;default:0" json:"parent_id"`
	Selectable  bool   `gorm:"not null;default:true" json:"selectable"`
}

// TableName explicitly sets the table name for GORM.
func (Tag) TableName() string {
	return "tag"
}

// PictureTag is the picture<->tag association row. Uniqueness is enforced
// by the replace-all-on-update application logic, not by the schema.
type PictureTag struct {
	TagID     int64  `gorm:"index;not null" json:"tag_id"`
	PictureID string `gorm:"index;not null" json:"picture_id"`
}

// TableName explicitly sets the table name for GORM.
func (PictureTag) TableName() string {
	return "picture_tag"
}
