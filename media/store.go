package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Store lays pictures out on disk in three parallel sharded trees
// (originals, display copies, thumbnails). Each tree splits its files
// across 256 subdirectories named by the first two hex characters of the
// picture id, and a file is named <id>.<extension>.
type Store struct {
	basePath string
	treeMap  map[Tree]string
}

// NewStore creates a store rooted at basePath, ensuring the three tree
// directories exist. Shard subdirectories are created on demand.
func NewStore(basePath string) (*Store, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	treeMap := make(map[Tree]string)
	for _, tree := range []Tree{TreePictures, TreeDisplay, TreeThumbnails} {
		fullPath := filepath.Join(absBasePath, string(tree))
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create tree directory '%s': %w", fullPath, err)
		}
		treeMap[tree] = fullPath
	}

	log.Printf("media.store: Initialized sharded store at %s", absBasePath)
	return &Store{basePath: absBasePath, treeMap: treeMap}, nil
}

// BasePath returns the absolute root the three trees live under
func (s *Store) BasePath() string {
	return s.basePath
}

// shardDir returns the two-hex-digit shard directory for an id within a
// tree
func (s *Store) shardDir(tree Tree, id string) string {
	return filepath.Join(s.treeMap[tree], strings.ToLower(id[:2]))
}

// Path returns the absolute file path for an id within a tree without
// touching the filesystem
func (s *Store) Path(tree Tree, id, ext string) string {
	return filepath.Join(s.shardDir(tree, id), id+"."+ext)
}

// Save copies data into the tree under the id's shard directory and
// returns the absolute path written. A partial file left by a failed
// copy is removed.
func (s *Store) Save(tree Tree, id, ext string, data io.Reader) (string, error) {
	if len(id) < 2 {
		return "", fmt.Errorf("invalid picture id %q", id)
	}
	dir := s.shardDir(tree, id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create shard directory '%s': %w", dir, err)
	}

	fullPath := s.Path(tree, id, ext)
	outFile, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullPath, err)
	}

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullPath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to close '%s': %w", fullPath, err)
	}

	return fullPath, nil
}

// Open returns a reader for an asset
func (s *Store) Open(tree Tree, id, ext string) (io.ReadCloser, os.FileInfo, error) {
	if len(id) < 2 {
		return nil, nil, fmt.Errorf("invalid picture id %q", id)
	}
	fullPath := s.Path(tree, id, ext)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("asset not found at '%s': %w", fullPath, err)
		}
		return nil, nil, fmt.Errorf("failed to open asset '%s': %w", fullPath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("failed to stat asset '%s': %w", fullPath, err)
	}
	return file, info, nil
}

// Delete removes an asset file, ignoring files that are already gone
func (s *Store) Delete(tree Tree, id, ext string) error {
	if len(id) < 2 {
		return fmt.Errorf("invalid picture id %q", id)
	}
	fullPath := s.Path(tree, id, ext)
	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", fullPath, err)
	}
	return nil
}

// DeleteAll removes a picture's files from all three trees. originalExt
// is the extension of the stored original; display and thumbnail copies
// always use the jpeg extension.
func (s *Store) DeleteAll(id, originalExt string) error {
	if err := s.Delete(TreePictures, id, originalExt); err != nil {
		return err
	}
	if err := s.Delete(TreeDisplay, id, DisplayFileExtension); err != nil {
		return err
	}
	return s.Delete(TreeThumbnails, id, ThumbnailFileExtension)
}
