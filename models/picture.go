package models

// Picture represents a picture row in the database using GORM.
// The primary key is the SHA-256 content hash of the original file,
// which is also the picture's storage key on disk.
type Picture struct {
	ID           string `gorm:"primaryKey" json:"id"`
	Grade        int    `gorm:"not null;default:0" json:"grade"`
	ModifiedAt   int64  `gorm:"column:modified_timestamp;not null" json:"modified_timestamp"`
	AddedAt      int64  `gorm:"column:adding_timestamp;not null" json:"adding_timestamp"`
	OriginalName string `gorm:"not null" json:"original_name"`
	Format       string `gorm:"not null" json:"format"`

	// immutable metadata block, extracted once at ingestion
	Width            *int    `gorm:"" json:"width,omitempty"`
	Height           *int    `gorm:"" json:"height,omitempty"`
	CreationAt       *int64  `gorm:"column:creation_timestamp;index" json:"creation_timestamp,omitempty"`
	Orientation      *int    `gorm:"" json:"orientation,omitempty"`
	Make             *string `gorm:"" json:"make,omitempty"`
	Model            *string `gorm:"" json:"model,omitempty"`
	Exposure         *string `gorm:"" json:"exposure,omitempty"`
	RelativeAperture *string `gorm:"" json:"relative_aperture,omitempty"`
	FocalLength      *string `gorm:"" json:"focal_length,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Picture) TableName() string {
	return "picture"
}
