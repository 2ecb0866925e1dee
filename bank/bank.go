// Package bank ties the picture bank together: content-addressed
// ingestion into a sharded file store, the relational metadata rows, the
// search index, the tag catalog, the picture object cache with deferred
// write-back, and the browsing cursors.
package bank

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/camden-git/picturebank/cache"
	"github.com/camden-git/picturebank/config"
	"github.com/camden-git/picturebank/database"
	"github.com/camden-git/picturebank/index"
	"github.com/camden-git/picturebank/media"
	"github.com/camden-git/picturebank/repository"
	"github.com/camden-git/picturebank/tags"
	"github.com/camden-git/picturebank/workers"
)

// Bank is one self-contained picture library: the sharded file trees,
// the relational store, the two search indexes and the tag catalog,
// behind an explicit Open/Close lifecycle. The in-memory id list is
// authoritative for membership during ingestion.
type Bank struct {
	cfg         config.Config
	pictures    repository.PictureRepositoryInterface
	tags        *tags.Repository
	picIndex    *index.PictureIndex
	tagIndex    *index.TagIndex
	store       *media.Store
	transformer media.Transformer

	identifyPool  *workers.Pool
	transformPool *workers.Pool

	cache   *cache.Cache[*Picture]
	updater *updater

	idMu  sync.Mutex
	ids   []string
	idSet map[string]struct{}
}

// Open builds a bank on top of an initialized database connection
func Open(cfg config.Config, db *gorm.DB, transformer media.Transformer) (*Bank, error) {
	return open(cfg, repository.NewPictureRepository(db), repository.NewTagRepository(db), transformer)
}

func open(cfg config.Config, pictures repository.PictureRepositoryInterface, tagStore repository.TagRepositoryInterface, transformer media.Transformer) (*Bank, error) {
	store, err := media.NewStore(cfg.BankRoot)
	if err != nil {
		return nil, err
	}

	picIndex, err := index.OpenPictureIndex(filepath.Join(cfg.IndexPath, "pictures"))
	if err != nil {
		return nil, err
	}
	tagIndex, err := index.OpenTagIndex(filepath.Join(cfg.IndexPath, "tags"))
	if err != nil {
		picIndex.Close()
		return nil, err
	}

	tagRepo, err := tags.NewRepository(tagStore, tagIndex, cfg.RecentTagsSize)
	if err != nil {
		picIndex.Close()
		tagIndex.Close()
		return nil, err
	}

	b := &Bank{
		cfg:         cfg,
		pictures:    pictures,
		tags:        tagRepo,
		picIndex:    picIndex,
		tagIndex:    tagIndex,
		store:       store,
		transformer: transformer,
		idSet:       make(map[string]struct{}),
	}

	ids, err := pictures.ListIDs(database.DefaultSortOrder)
	if err != nil {
		picIndex.Close()
		tagIndex.Close()
		return nil, fmt.Errorf("failed to load picture id list: %w", err)
	}
	b.ids = ids
	for _, id := range ids {
		b.idSet[id] = struct{}{}
	}

	b.updater = newUpdater(b, cfg.TransformQueueSize, cfg.WritebackDelay)
	b.cache, err = cache.New[*Picture](cfg.PictureCacheSize, b.loadPicture, b.onEvict)
	if err != nil {
		picIndex.Close()
		tagIndex.Close()
		return nil, err
	}

	b.identifyPool = workers.NewPool("identify", cfg.TransformQueueSize, cfg.NumIdentifyWorkers)
	b.transformPool = workers.NewPool("transform", cfg.TransformQueueSize, cfg.NumTransformWorkers)
	b.updater.start()

	log.Printf("bank: opened with %d picture(s) at %s", len(ids), cfg.BankRoot)
	return b, nil
}

// Close shuts the bank down cooperatively: the write-back worker drains
// and stops, the transform pools stop, resident dirty pictures flush
// through cache purge, and the indexes close last
func (b *Bank) Close() error {
	b.updater.stop()
	b.transformPool.Stop()
	b.identifyPool.Stop()
	b.cache.Purge()

	var firstErr error
	if err := b.picIndex.Close(); err != nil {
		firstErr = err
	}
	if err := b.tagIndex.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	log.Printf("bank: closed")
	return firstErr
}

// Tags exposes the bank's tag repository
func (b *Bank) Tags() *tags.Repository { return b.tags }

// Store exposes the sharded file store (for asset serving)
func (b *Bank) Store() *media.Store { return b.store }

// Size returns the number of pictures in the bank
func (b *Bank) Size() int {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	return len(b.ids)
}

// PictureIDs returns a snapshot of the id list
func (b *Bank) PictureIDs() []string {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	ids := make([]string, len(b.ids))
	copy(ids, b.ids)
	return ids
}

// HasPicture reports membership against the in-memory id list
func (b *Bank) HasPicture(id string) bool {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	_, ok := b.idSet[id]
	return ok
}

// GetPicture resolves an id to its in-memory object through the cache
func (b *Bank) GetPicture(id string) (*Picture, error) {
	if !b.HasPicture(id) {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownPicture)
	}
	return b.cache.Get(id)
}

// HashFile computes the content address for a file: the hex form of the
// SHA-256 hash of its full byte stream. It depends on byte content only.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SyncAddPicture ingests one file, blocking the caller for the full
// pipeline: hash, metadata extraction, byte copy, persistence and
// indexing. Thumbnails (and a display copy for non-displayable formats)
// are generated in the background. A byte-identical file that is already
// banked gets the requested tags attached to the existing picture and a
// DuplicateError instead of a second copy.
func (b *Bank) SyncAddPicture(path string, applyTags []*tags.Tag) (*Picture, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	id, err := HashFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}

	if b.HasPicture(id) {
		pic, err := b.cache.Get(id)
		if err != nil {
			return nil, err
		}
		b.attachTags(pic, applyTags)
		return pic, &DuplicateError{ID: id}
	}

	// metadata extraction runs through the identify pool so its
	// concurrency stays bounded independently of other transforms
	var meta *media.Metadata
	if err := b.identifyPool.Run(func() error {
		m, identErr := b.transformer.Identify(path)
		meta = m
		return identErr
	}); err != nil {
		return nil, &TransformError{Path: path, Err: err}
	}

	ext := media.FormatExtension(meta.Format)
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, ErrNotRegularFile)
	}
	storedPath, err := b.store.Save(media.TreePictures, id, ext, src)
	src.Close()
	if err != nil {
		return nil, &StoreError{Op: "copy", Ref: path, Err: err}
	}

	pic := newPicture(id, filepath.Base(path), *meta, time.Now(), b.updater.enqueue)
	tagIDs := make([]int64, 0, len(applyTags))
	for _, t := range applyTags {
		if t == nil {
			continue
		}
		tagIDs = append(tagIDs, t.ID)
		b.tags.AddLastUsed(t)
	}
	pic.seedTags(tagIDs)

	thumbDst := b.store.Path(media.TreeThumbnails, id, media.ThumbnailFileExtension)
	b.transformPool.Submit(func() error {
		return b.transformer.CreateThumbnail(storedPath, thumbDst, b.cfg.ThumbnailMaxSize)
	})
	if !media.IsNativelyDisplayable(meta.Format) {
		displayDst := b.store.Path(media.TreeDisplay, id, media.DisplayFileExtension)
		b.transformPool.Submit(func() error {
			return b.transformer.CreateDisplayImage(storedPath, displayDst)
		})
	}

	model, rowTagIDs, doc := pic.snapshot()
	if err := b.pictures.Insert(model, rowTagIDs); err != nil {
		return nil, &StoreError{Op: "sql", Ref: id, Err: err}
	}
	if err := b.picIndex.Index(doc); err != nil {
		return nil, &StoreError{Op: "index", Ref: id, Err: err}
	}

	b.appendID(id)
	b.cache.Put(id, pic)
	log.Printf("bank: added picture %s (%s)", id, pic.OriginalName())
	return pic, nil
}

// ImportReport accumulates the outcome of a bulk ingestion: successes,
// recoverable per-path errors, and duplicates keyed by the conflicting
// id
type ImportReport struct {
	Added      int
	Errors     map[string]error
	Duplicates map[string]string
}

// AddDirectory walks a directory tree and ingests every regular file in
// natural name order. Recoverable failures (bad files, duplicates) are
// recorded and the walk continues; a store error stops it, preserving
// the partial report.
func (b *Bank) AddDirectory(root string, applyTags []*tags.Tag) (*ImportReport, error) {
	report := &ImportReport{
		Errors:     make(map[string]error),
		Duplicates: make(map[string]string),
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			report.Errors[path] = walkErr
			return nil
		}
		if d.Type().IsRegular() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	natsort.Sort(paths)

	for _, path := range paths {
		_, err := b.SyncAddPicture(path, applyTags)
		if err == nil {
			report.Added++
			continue
		}
		var dup *DuplicateError
		if errors.As(err, &dup) {
			report.Duplicates[dup.ID] = path
			continue
		}
		if IsRecoverable(err) {
			report.Errors[path] = err
			continue
		}
		return report, err
	}
	return report, nil
}

// DeletePicture removes a picture from all three stores and the id list
func (b *Bank) DeletePicture(id string) error {
	pic, err := b.GetPicture(id)
	if err != nil {
		return err
	}

	// drop unpersisted state so the eviction hook does not write the
	// picture back while it is being removed
	pic.clearDirty()
	b.cache.Invalidate(id)
	b.removeID(id)

	if err := b.picIndex.Delete(id); err != nil {
		return &StoreError{Op: "index", Ref: id, Err: err}
	}
	if err := b.pictures.Delete(id); err != nil {
		return &StoreError{Op: "sql", Ref: id, Err: err}
	}
	if err := b.store.DeleteAll(id, media.FormatExtension(pic.Format())); err != nil {
		return &StoreError{Op: "delete", Ref: id, Err: err}
	}
	log.Printf("bank: deleted picture %s", id)
	return nil
}

// ReindexPicture force-resyncs one picture's search document outside the
// debounce path
func (b *Bank) ReindexPicture(id string) error {
	pic, err := b.GetPicture(id)
	if err != nil {
		return err
	}
	pic.mu.Lock()
	doc := pic.documentLocked()
	pic.mu.Unlock()
	if err := b.picIndex.Index(doc); err != nil {
		return &StoreError{Op: "index", Ref: id, Err: err}
	}
	return nil
}

// CheckAll re-synchronizes the whole bank into the search index, used
// for maintenance and repair
func (b *Bank) CheckAll() error {
	failures := 0
	for _, id := range b.PictureIDs() {
		if err := b.ReindexPicture(id); err != nil {
			log.Printf("bank: check failed for picture %s: %v", id, err)
			failures++
		}
	}
	for _, t := range b.tags.TagSet() {
		if err := b.tagIndex.Index(t.ID, t.Name, t.Description); err != nil {
			log.Printf("bank: check failed for tag %d: %v", t.ID, err)
			failures++
		}
	}
	if failures > 0 {
		return fmt.Errorf("check finished with %d failure(s)", failures)
	}
	return nil
}

// FlushPicture persists a picture immediately, outside the debounce path
func (b *Bank) FlushPicture(id string) error {
	pic, err := b.GetPicture(id)
	if err != nil {
		return err
	}
	return b.flushPicture(pic)
}

// attachTags applies tags to an already banked picture; actual additions
// are recorded as recently used and persisted through write-back
func (b *Bank) attachTags(pic *Picture, applyTags []*tags.Tag) {
	for _, t := range applyTags {
		if t == nil {
			continue
		}
		if pic.AddTag(t.ID) {
			b.tags.AddLastUsed(t)
		}
	}
}

// loadPicture is the cache loader: the persistence row plus its tag ids,
// resolved through the tag repository so stale associations drop out
func (b *Bank) loadPicture(id string) (*Picture, error) {
	row, tagIDs, err := b.pictures.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%s: %w", id, ErrUnknownPicture)
		}
		return nil, err
	}

	resolved := b.tags.ResolveAll(tagIDs)
	validIDs := make([]int64, len(resolved))
	for i, t := range resolved {
		validIDs[i] = t.ID
	}
	return pictureFromModel(row, validIDs, b.updater.enqueue), nil
}

// onEvict is the cache removal hook: evicted dirty pictures are
// persisted synchronously in whichever goroutine triggered the eviction
func (b *Bank) onEvict(id string, pic *Picture) {
	if err := b.flushPicture(pic); err != nil {
		log.Printf("bank: failed to flush evicted picture %s: %v", id, err)
	}
}

// flushPicture persists a dirty picture's row, replaces its tag
// associations and reindexes its document, all under the per-object
// lock. A clean picture is a no-op, which makes the eviction-triggered
// flush and the queued write-back flush safe to race.
func (b *Bank) flushPicture(pic *Picture) error {
	pic.mu.Lock()
	defer pic.mu.Unlock()
	if !pic.dirty {
		return nil
	}

	model := pic.modelLocked()
	tagIDs := pic.tagIDsLocked()
	if err := b.pictures.Update(model, tagIDs); err != nil {
		return &StoreError{Op: "sql", Ref: pic.id, Err: err}
	}
	if err := b.picIndex.Index(pic.documentLocked()); err != nil {
		return &StoreError{Op: "index", Ref: pic.id, Err: err}
	}
	pic.dirty = false
	return nil
}

func (b *Bank) appendID(id string) {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	b.ids = append(b.ids, id)
	b.idSet[id] = struct{}{}
}

func (b *Bank) removeID(id string) {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	delete(b.idSet, id)
	for i, cur := range b.ids {
		if cur == id {
			b.ids = append(b.ids[:i], b.ids[i+1:]...)
			break
		}
	}
}
