package media

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// Transformer is the image transform service collaborator: metadata
// extraction, thumbnailing, display conversion and ad-hoc resizes. All
// methods block; callers wanting fire-and-forget submit through a worker
// pool.
type Transformer interface {
	Identify(path string) (*Metadata, error)
	CreateThumbnail(src, dst string, maxSize int) error
	CreateDisplayImage(src, dst string) error
	Resize(src, dst string, width, height int) error
	ChangeFormat(src, dst string) error
}

// ImagingTransformer implements Transformer with the imaging library and
// goexif, entirely in-process
type ImagingTransformer struct{}

func NewImagingTransformer() *ImagingTransformer {
	return &ImagingTransformer{}
}

// Identify extracts the metadata block from a source file
func (t *ImagingTransformer) Identify(path string) (*Metadata, error) {
	return extractMetadata(path)
}

// CreateThumbnail generates a thumbnail whose longest side is at most
// maxSize pixels and saves it as jpeg at dst
func (t *ImagingTransformer) CreateThumbnail(src, dst string, maxSize int) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", src, err)
	}

	thumb := imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)

	if err := ensureParentDir(dst); err != nil {
		return err
	}
	if err := imaging.Save(thumb, dst, imaging.JPEGQuality(ThumbnailJpegQuality)); err != nil {
		return fmt.Errorf("failed to save thumbnail to %s: %w", dst, err)
	}
	return nil
}

// CreateDisplayImage converts a non-natively-displayable source into a
// full-size jpeg at dst
func (t *ImagingTransformer) CreateDisplayImage(src, dst string) error {
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", src, err)
	}

	if err := ensureParentDir(dst); err != nil {
		return err
	}
	if err := imaging.Save(img, dst, imaging.JPEGQuality(DisplayJpegQuality)); err != nil {
		return fmt.Errorf("failed to save display image to %s: %w", dst, err)
	}
	return nil
}

// Resize scales a source image to the given dimensions. A zero width or
// height preserves the aspect ratio.
func (t *ImagingTransformer) Resize(src, dst string, width, height int) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", src, err)
	}

	resized := imaging.Resize(img, width, height, imaging.Lanczos)

	if err := ensureParentDir(dst); err != nil {
		return err
	}
	if err := imaging.Save(resized, dst); err != nil {
		return fmt.Errorf("failed to save resized image to %s: %w", dst, err)
	}
	return nil
}

// ChangeFormat re-encodes a source image; the target format is inferred
// from dst's extension
func (t *ImagingTransformer) ChangeFormat(src, dst string) error {
	img, err := imaging.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open image %s: %w", src, err)
	}

	if err := ensureParentDir(dst); err != nil {
		return err
	}
	if err := imaging.Save(img, dst); err != nil {
		return fmt.Errorf("failed to save converted image to %s: %w", dst, err)
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
