package media

import "strings"

// Tree identifies one of the three parallel sharded file trees a bank
// keeps on disk
type Tree string

const (
	TreePictures   Tree = "pictures"   // original files, content-addressed
	TreeDisplay    Tree = "display"    // display-safe copies of non-displayable formats
	TreeThumbnails Tree = "thumbnails" // generated thumbnails
)

const (
	ThumbnailJpegQuality   = 90
	DisplayJpegQuality     = 85
	ThumbnailFileExtension = "jpg"
	DisplayFileExtension   = "jpg"
)

// Metadata is the immutable metadata block extracted from a picture at
// ingestion time. All fields except Format are optional; absent EXIF
// data leaves them nil.
type Metadata struct {
	Width            *int    `json:"width,omitempty"`
	Height           *int    `json:"height,omitempty"`
	CreationAt       *int64  `json:"creation_timestamp,omitempty"` // unix timestamp from EXIF DateTime
	Orientation      *int    `json:"orientation,omitempty"`
	Make             *string `json:"make,omitempty"`
	Model            *string `json:"model,omitempty"`
	Exposure         *string `json:"exposure,omitempty"`          // e.g. "1/125"
	RelativeAperture *string `json:"relative_aperture,omitempty"` // e.g. "f/2.8"
	FocalLength      *string `json:"focal_length,omitempty"`      // e.g. "50.0 mm"
	Format           string  `json:"format"`                      // detected source format, e.g. "jpeg"
}

var displayableFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// IsNativelyDisplayable reports whether browsers can render the format
// directly; everything else gets a display-safe secondary image
func IsNativelyDisplayable(format string) bool {
	return displayableFormats[strings.ToLower(format)]
}

// FormatExtension maps a detected image format to the file extension the
// stored original uses
func FormatExtension(format string) string {
	switch strings.ToLower(format) {
	case "jpeg":
		return "jpg"
	case "tiff":
		return "tif"
	default:
		return strings.ToLower(format)
	}
}
