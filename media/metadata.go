package media

import (
	"fmt"
	"image"
	"log"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	// register decoders for image.DecodeConfig
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// helper to safely get and convert a rational tag (like FNumber, FocalLength)
func getRational(exifData *exif.Exif, tagName exif.FieldName) *float64 {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// rational numbers are often stored as num/den
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		// sometimes stored as Int instead
		valInt, errInt := tag.Int(0)
		if errInt == nil {
			fVal := float64(valInt)
			return &fVal
		}
		return nil
	}
	val := float64(num) / float64(den)
	return &val
}

// helper to safely get and convert an integer tag (like Orientation)
func getInt(exifData *exif.Exif, tagName exif.FieldName) *int {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.Int(0)
	if err != nil {
		return nil
	}
	return &val
}

// helper to safely get a string tag, trimming null terminators
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	// val string might have null chars at the end
	val := strings.Trim(strings.TrimRight(tag.String(), "\x00"), "\"")
	if val == "" {
		return nil
	}
	return &val
}

// helper to get the exposure time as a display string, e.g. "1/125"
func getExposure(exifData *exif.Exif) *string {
	tag, err := exifData.Get(exif.ExposureTime)
	if err != nil || tag == nil {
		return nil
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return nil
	}

	if num == 1 && den > 1 { // common case: 1/XXX
		s := fmt.Sprintf("1/%d", den)
		return &s
	}

	val := float64(num) / float64(den)
	s := fmt.Sprintf("%.1f", val)
	return &s
}

// helper to get the aperture as a display string, e.g. "f/2.8"
func getRelativeAperture(exifData *exif.Exif) *string {
	f := getRational(exifData, exif.FNumber)
	if f == nil {
		return nil
	}
	s := fmt.Sprintf("f/%.1f", *f)
	return &s
}

// helper to get the focal length as a display string, e.g. "50.0 mm"
func getFocalLength(exifData *exif.Exif) *string {
	f := getRational(exifData, exif.FocalLength)
	if f == nil {
		return nil
	}
	s := fmt.Sprintf("%.1f mm", *f)
	return &s
}

// extractMetadata reads a picture's dimensions, format and EXIF fields.
// An undecodable file is an error (ingestion must not proceed without a
// detected format); missing EXIF data is not.
func extractMetadata(filePath string) (*Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("metadata: failed to identify %s: %w", filePath, err)
	}
	w, h := config.Width, config.Height

	meta := &Metadata{
		Width:  &w,
		Height: &h,
		Format: format,
	}

	if _, err := file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("metadata: failed to seek file %s: %w", filePath, err)
	}

	exifData, err := exif.Decode(file)
	if err != nil {
		// not necessarily a fatal error, file might just lack EXIF data
		log.Printf("metadata: No EXIF data found for %s: %v", filePath, err)
		return meta, nil
	}

	meta.Orientation = getInt(exifData, exif.Orientation)
	meta.Make = getString(exifData, exif.Make)
	meta.Model = getString(exifData, exif.Model)
	meta.Exposure = getExposure(exifData)
	meta.RelativeAperture = getRelativeAperture(exifData)
	meta.FocalLength = getFocalLength(exifData)

	if dt, err := exifData.DateTime(); err == nil {
		ts := dt.Unix()
		meta.CreationAt = &ts
	}

	return meta, nil
}
