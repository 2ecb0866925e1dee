package bank

import (
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWritebackCoalescesRapidEdits(t *testing.T) {
	cfg := testConfig(t)
	cfg.WritebackDelay = 60 * time.Millisecond
	b, repo := newTestBank(t, cfg)

	src := writeTestFile(t, t.TempDir(), "edited.jpg", "bytes")
	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	// three edits inside one dwell window
	pic.SetGrade(1)
	pic.SetGrade(2)
	pic.SetGrade(3)

	waitFor(t, 2*time.Second, func() bool { return repo.updateCount() >= 1 })

	// give any stray second flush time to happen, then check it did not
	time.Sleep(3 * cfg.WritebackDelay)
	if got := repo.updateCount(); got != 1 {
		t.Errorf("expected rapid edits to coalesce into 1 write, got %d", got)
	}
	if repo.storedGrade(pic.ID()) != 3 {
		t.Errorf("expected final grade 3 persisted, got %d", repo.storedGrade(pic.ID()))
	}
	if pic.Dirty() {
		t.Error("picture still dirty after write-back")
	}
}

func TestWritebackPersistsTagChanges(t *testing.T) {
	cfg := testConfig(t)
	cfg.WritebackDelay = 20 * time.Millisecond
	b, repo := newTestBank(t, cfg)

	tag, err := b.Tags().AddTag(nil, "late", "", true)
	if err != nil {
		t.Fatalf("AddTag failed: %v", err)
	}

	src := writeTestFile(t, t.TempDir(), "tagged.jpg", "bytes")
	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	pic.AddTag(tag.ID)
	waitFor(t, 2*time.Second, func() bool {
		stored := repo.storedTags(pic.ID())
		return len(stored) == 1 && stored[0] == tag.ID
	})
}

func TestEvictionFlushesDirtyPicture(t *testing.T) {
	cfg := testConfig(t)
	cfg.PictureCacheSize = 1
	cfg.WritebackDelay = 500 * time.Millisecond
	b, repo := newTestBank(t, cfg)
	dir := t.TempDir()

	first, err := b.SyncAddPicture(writeTestFile(t, dir, "first.jpg", "aaa"), nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}
	first.SetGrade(4)

	// adding a second picture evicts the first from the single-slot
	// cache; the eviction hook flushes it synchronously, well before the
	// debounce dwell elapses
	if _, err := b.SyncAddPicture(writeTestFile(t, dir, "second.jpg", "bbb"), nil); err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}

	if repo.storedGrade(first.ID()) != 4 {
		t.Errorf("expected evicted picture persisted, stored grade %d", repo.storedGrade(first.ID()))
	}
	if first.Dirty() {
		t.Error("evicted picture still dirty")
	}

	// the queued write-back sees a clean picture and must not write again
	time.Sleep(cfg.WritebackDelay + 200*time.Millisecond)
	if got := repo.updateCount(); got != 1 {
		t.Errorf("expected exactly 1 write for the evicted picture, got %d", got)
	}

	// reloading through the cache reproduces the persisted state
	reloaded, err := b.GetPicture(first.ID())
	if err != nil {
		t.Fatalf("GetPicture after eviction failed: %v", err)
	}
	if reloaded.Grade() != 4 {
		t.Errorf("expected reloaded grade 4, got %d", reloaded.Grade())
	}
}

func TestCloseFlushesPendingWrites(t *testing.T) {
	cfg := testConfig(t)
	cfg.WritebackDelay = 10 * time.Second // far beyond the test duration
	repo := newFakePictureRepo()
	b, err := open(cfg, repo, newFakeTagStore(), &fakeTransformer{})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}

	src := writeTestFile(t, t.TempDir(), "pending.jpg", "bytes")
	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}
	pic.SetGrade(2)

	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if repo.storedGrade(pic.ID()) != 2 {
		t.Errorf("expected shutdown to persist the pending edit, got grade %d", repo.storedGrade(pic.ID()))
	}
}

func TestDeleteDropsPendingWriteback(t *testing.T) {
	cfg := testConfig(t)
	cfg.WritebackDelay = 300 * time.Millisecond
	b, repo := newTestBank(t, cfg)

	src := writeTestFile(t, t.TempDir(), "gone.jpg", "bytes")
	pic, err := b.SyncAddPicture(src, nil)
	if err != nil {
		t.Fatalf("SyncAddPicture failed: %v", err)
	}
	pic.SetGrade(5)

	if err := b.DeletePicture(pic.ID()); err != nil {
		t.Fatalf("DeletePicture failed: %v", err)
	}

	// the queued flush must not resurrect the deleted row
	time.Sleep(cfg.WritebackDelay + 200*time.Millisecond)
	if got := repo.updateCount(); got != 0 {
		t.Errorf("expected no writes for a deleted picture, got %d", got)
	}
}
