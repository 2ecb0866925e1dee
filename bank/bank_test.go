package bank

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/picturebank/config"
	"github.com/camden-git/picturebank/media"
	"github.com/camden-git/picturebank/models"
	"github.com/camden-git/picturebank/tags"
)

// fakePictureRepo is an in-memory stand-in for the SQL picture
// repository
type fakePictureRepo struct {
	mu      sync.Mutex
	rows    map[string]models.Picture
	tags    map[string][]int64
	order   []string
	inserts int
	updates int
}

func newFakePictureRepo() *fakePictureRepo {
	return &fakePictureRepo{
		rows: make(map[string]models.Picture),
		tags: make(map[string][]int64),
	}
}

func (r *fakePictureRepo) Insert(pic *models.Picture, tagIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[pic.ID] = *pic
	r.tags[pic.ID] = append([]int64(nil), tagIDs...)
	r.order = append(r.order, pic.ID)
	r.inserts++
	return nil
}

func (r *fakePictureRepo) Update(pic *models.Picture, tagIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[pic.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.rows[pic.ID] = *pic
	r.tags[pic.ID] = append([]int64(nil), tagIDs...)
	r.updates++
	return nil
}

func (r *fakePictureRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.rows, id)
	delete(r.tags, id)
	for i, cur := range r.order {
		if cur == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *fakePictureRepo) GetByID(id string) (*models.Picture, []int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, nil, gorm.ErrRecordNotFound
	}
	return &row, append([]int64(nil), r.tags[id]...), nil
}

func (r *fakePictureRepo) ListIDs(order string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...), nil
}

func (r *fakePictureRepo) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func (r *fakePictureRepo) storedGrade(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id].Grade
}

func (r *fakePictureRepo) storedTags(id string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.tags[id]...)
}

// fakeTagStore is the no-op persistence backing for the tag catalog
type fakeTagStore struct {
	mu   sync.Mutex
	rows map[int64]models.Tag
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{rows: make(map[int64]models.Tag)}
}

func (s *fakeTagStore) Insert(tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tag.ID] = *tag
	return nil
}

func (s *fakeTagStore) Update(tag *models.Tag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[tag.ID] = *tag
	return nil
}

func (s *fakeTagStore) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *fakeTagStore) DeleteAssociations(tagID int64) error { return nil }

func (s *fakeTagStore) LoadAll() ([]models.Tag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Tag, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeTagStore) LoadParentEdges() (map[int64]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edges := make(map[int64]int64, len(s.rows))
	for id, row := range s.rows {
		edges[id] = row.ParentID
	}
	return edges, nil
}

// fakeTransformer skips real image decoding; creation timestamps count
// up so index ordering follows ingestion order
type fakeTransformer struct {
	creation int64
	thumbs   int64
	displays int64
	format   string
}

func (f *fakeTransformer) Identify(path string) (*media.Metadata, error) {
	format := f.format
	if format == "" {
		format = "jpeg"
	}
	w, h := 800, 600
	creation := atomic.AddInt64(&f.creation, 1000)
	return &media.Metadata{Width: &w, Height: &h, CreationAt: &creation, Format: format}, nil
}

func (f *fakeTransformer) CreateThumbnail(src, dst string, maxSize int) error {
	atomic.AddInt64(&f.thumbs, 1)
	return nil
}

func (f *fakeTransformer) CreateDisplayImage(src, dst string) error {
	atomic.AddInt64(&f.displays, 1)
	return nil
}

func (f *fakeTransformer) Resize(src, dst string, width, height int) error { return nil }
func (f *fakeTransformer) ChangeFormat(src, dst string) error              { return nil }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		BankRoot:            t.TempDir(),
		IndexPath:           filepath.Join(t.TempDir(), "index"),
		ThumbnailMaxSize:    100,
		TransformQueueSize:  16,
		NumTransformWorkers: 1,
		NumIdentifyWorkers:  1,
		WritebackDelay:      50 * time.Millisecond,
		PictureCacheSize:    16,
		RecentTagsSize:      5,
	}
}

func newTestBank(t *testing.T, cfg config.Config) (*Bank, *fakePictureRepo) {
	t.Helper()
	repo := newFakePictureRepo()
	b, err := open(cfg, repo, newFakeTagStore(), &fakeTransformer{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b, repo
}

func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

func TestHashFileIsContentAddressed(t *testing.T) {
	dir := t.TempDir()
	a := writeTestFile(t, dir, "a.jpg", "same bytes")
	b := writeTestFile(t, dir, "b.jpg", "same bytes")
	c := writeTestFile(t, dir, "c.jpg", "different bytes")

	hashA, err := HashFile(a)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if len(hashA) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(hashA))
	}

	hashB, _ := HashFile(b)
	if hashA != hashB {
		t.Error("identical content under different names must hash identically")
	}
	hashC, _ := HashFile(c)
	if hashA == hashC {
		t.Error("different content must hash differently")
	}
}

func TestSyncAddPicture(t *testing.T) {
	b, repo := newTestBank(t, testConfig(t))
	src := writeTestFile(t, t.TempDir(), "holiday.jpg", "jpeg bytes")

	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	wantID, _ := HashFile(src)
	if pic.ID() != wantID {
		t.Errorf("picture id %s does not match content hash %s", pic.ID(), wantID)
	}
	if pic.OriginalName() != "holiday.jpg" {
		t.Errorf("unexpected original name %s", pic.OriginalName())
	}
	if b.Size() != 1 {
		t.Errorf("expected size 1, got %d", b.Size())
	}

	// the original landed in the sharded pictures tree
	stored := b.Store().Path(media.TreePictures, pic.ID(), "jpg")
	data, err := os.ReadFile(stored)
	if err != nil {
		t.Fatalf("stored original missing: %v", err)
	}
	if string(data) != "jpeg bytes" {
		t.Errorf("stored bytes differ from source")
	}

	if _, _, err := repo.GetByID(pic.ID()); err != nil {
		t.Errorf("row not persisted: %v", err)
	}
	count, err := b.picIndex.Count()
	if err != nil || count != 1 {
		t.Errorf("expected 1 indexed document, got %d (%v)", count, err)
	}
}

func TestSyncAddPictureDuplicate(t *testing.T) {
	b, _ := newTestBank(t, testConfig(t))
	dir := t.TempDir()
	first := writeTestFile(t, dir, "first.jpg", "same content")
	second := writeTestFile(t, dir, "second.jpg", "same content")

	t1, err := b.Tags().AddTag(nil, "t1", "", true)
	if err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}
	t2, err := b.Tags().AddTag(nil, "t2", "", true)
	if err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}

	original, err := b.SyncAddPicture(first, []*tags.Tag{t1})
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	dupPic, err := b.SyncAddPicture(second, []*tags.Tag{t2})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.ID != original.ID() {
		t.Errorf("duplicate reports id %s, want %s", dup.ID, original.ID())
	}
	if dupPic != original {
		t.Error("duplicate ingestion must return the existing object")
	}
	if b.Size() != 1 {
		t.Errorf("expected single picture, got %d", b.Size())
	}

	// tags from both attempts are unioned on the existing picture
	if !dupPic.HasTag(t1.ID) || !dupPic.HasTag(t2.ID) {
		t.Errorf("expected tag union, got %v", dupPic.TagIDs())
	}
}

func TestSyncAddPictureRejectsNonRegular(t *testing.T) {
	b, _ := newTestBank(t, testConfig(t))

	if _, err := b.SyncAddPicture(t.TempDir(), nil); !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("expected ErrNotRegularFile for a directory, got %v", err)
	}
	if _, err := b.SyncAddPicture(filepath.Join(t.TempDir(), "missing.jpg"), nil); !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("expected ErrNotRegularFile for a missing path, got %v", err)
	}
}

func TestAddDirectory(t *testing.T) {
	b, _ := newTestBank(t, testConfig(t))
	dir := t.TempDir()
	writeTestFile(t, dir, "img1.jpg", "one")
	writeTestFile(t, dir, "img2.jpg", "two")
	writeTestFile(t, dir, "img3.jpg", "one") // byte-identical to img1

	report, err := b.AddDirectory(dir, nil)
	if err != nil {
		t.Fatalf("AddDirectory failed: %v", err)
	}
	if report.Added != 2 {
		t.Errorf("expected 2 added, got %d", report.Added)
	}
	if len(report.Duplicates) != 1 {
		t.Errorf("expected 1 duplicate, got %v", report.Duplicates)
	}
	if len(report.Errors) != 0 {
		t.Errorf("expected no errors, got %v", report.Errors)
	}
	if b.Size() != 2 {
		t.Errorf("expected 2 pictures, got %d", b.Size())
	}
}

func TestDeletePicture(t *testing.T) {
	b, repo := newTestBank(t, testConfig(t))
	src := writeTestFile(t, t.TempDir(), "doomed.jpg", "bytes")

	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}
	stored := b.Store().Path(media.TreePictures, pic.ID(), "jpg")

	if err := b.DeletePicture(pic.ID()); err != nil {
		t.Fatalf("DeletePicture failed: %v", err)
	}
	if b.Size() != 0 {
		t.Errorf("expected empty bank, got %d", b.Size())
	}
	if _, _, err := repo.GetByID(pic.ID()); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("expected row gone, got %v", err)
	}
	if _, err := os.Stat(stored); !os.IsNotExist(err) {
		t.Errorf("expected stored file gone, got %v", err)
	}
	count, _ := b.picIndex.Count()
	if count != 0 {
		t.Errorf("expected empty index, got %d", count)
	}

	if err := b.DeletePicture(pic.ID()); !errors.Is(err, ErrUnknownPicture) {
		t.Errorf("expected ErrUnknownPicture, got %v", err)
	}
}

func TestGetPictureUnknown(t *testing.T) {
	b, _ := newTestBank(t, testConfig(t))
	if _, err := b.GetPicture("0000000000000000000000000000000000000000000000000000000000000000"); !errors.Is(err, ErrUnknownPicture) {
		t.Errorf("expected ErrUnknownPicture, got %v", err)
	}
}

func TestSetGradeBounds(t *testing.T) {
	b, _ := newTestBank(t, testConfig(t))
	src := writeTestFile(t, t.TempDir(), "graded.jpg", "bytes")

	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	if err := pic.SetGrade(MaxGrade + 1); !errors.Is(err, ErrInvalidGrade) {
		t.Errorf("expected ErrInvalidGrade, got %v", err)
	}
	if err := pic.SetGrade(MinGrade - 1); !errors.Is(err, ErrInvalidGrade) {
		t.Errorf("expected ErrInvalidGrade, got %v", err)
	}
	if err := pic.SetGrade(MaxGrade); err != nil {
		t.Errorf("expected max grade to be valid, got %v", err)
	}
}

func TestDisplayCopyForNonDisplayableFormat(t *testing.T) {
	cfg := testConfig(t)
	repo := newFakePictureRepo()
	transformer := &fakeTransformer{format: "tiff"}
	b, err := open(cfg, repo, newFakeTagStore(), transformer)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer b.Close()

	src := writeTestFile(t, t.TempDir(), "scan.tif", "tiff bytes")
	if _, err := b.SyncAddPicture(src, nil); err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt64(&transformer.displays) == 0 {
		select {
		case <-deadline:
			t.Fatal("display conversion never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
