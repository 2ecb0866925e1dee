package bank

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/camden-git/picturebank/tags"
)

// BrowserKind names the closed set of id-sequence variants a browser can
// be built over. All variants share identical cursor semantics and
// differ only in how their sequence is constructed.
type BrowserKind string

const (
	BrowseAll    BrowserKind = "all"
	BrowseSearch BrowserKind = "search"
	BrowseRandom BrowserKind = "random"
)

// Browser is a stateful bidirectional cursor over an ordered snapshot of
// picture ids, resolving ids to objects lazily through the bank's cache.
// The position moves through before-first, at(i) and after-last states;
// mutations to the bank after construction are not reflected. A browser
// also passes tag repository operations through so browsing and tagging
// share one object. Browsers are not safe for concurrent use.
type Browser struct {
	bank    *Bank
	kind    BrowserKind
	ids     []string
	pos     int // -1 = before-first, len(ids) = after-last
	current *Picture
}

// Browse creates a browser over the full id list
func (b *Bank) Browse() *Browser {
	return &Browser{bank: b, kind: BrowseAll, ids: b.PictureIDs(), pos: -1}
}

// BrowseSearch creates a browser over a search result. The query runs
// against the picture index with the given result-size limit; when
// currentID appears in the result the cursor starts on it, preserving
// the displayed position across a re-filter.
func (b *Bank) BrowseSearch(query string, limit int, currentID string) (*Browser, error) {
	ids, pos, err := b.picIndex.Search(query, limit, currentID)
	if err != nil {
		return nil, err
	}
	br := &Browser{bank: b, kind: BrowseSearch, ids: ids, pos: -1}
	if pos >= 0 {
		br.pos = pos
		br.resolve()
	}
	return br, nil
}

// BrowseRandom creates a browser over a uniform random sample of k
// distinct ids drawn from the full list without replacement. When the
// nominated currentID lands in the sample the cursor starts on it.
func (b *Bank) BrowseRandom(k int, currentID string) *Browser {
	ids := b.PictureIDs()
	if k > len(ids) {
		k = len(ids)
	}
	if k < 0 {
		k = 0
	}
	// partial Fisher-Yates: after k swaps the prefix is a uniform
	// sample without replacement
	for i := 0; i < k; i++ {
		j := i + rand.Intn(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	sample := ids[:k]

	br := &Browser{bank: b, kind: BrowseRandom, ids: sample, pos: -1}
	if currentID != "" {
		for i, id := range sample {
			if id == currentID {
				br.pos = i
				br.resolve()
				break
			}
		}
	}
	return br
}

// Kind returns the browser's sequence variant
func (br *Browser) Kind() BrowserKind { return br.kind }

// Size returns the length of the id sequence
func (br *Browser) Size() int { return len(br.ids) }

// Index returns the cursor position, -1 at before-first and Size() at
// after-last
func (br *Browser) Index() int { return br.pos }

// Current returns the most recently resolved picture, nil before the
// first successful resolution
func (br *Browser) Current() *Picture { return br.current }

// HasNext reports whether a successor exists; a pure query against the
// cursor position
func (br *Browser) HasNext() bool { return br.pos+1 < len(br.ids) }

// HasPrevious reports whether a non-trivial predecessor exists
func (br *Browser) HasPrevious() bool { return br.pos > 0 }

// NextIndex returns the index Next would move to, clamped to after-last
func (br *Browser) NextIndex() int {
	if br.pos >= len(br.ids) {
		return len(br.ids)
	}
	return br.pos + 1
}

// PreviousIndex returns the index Previous would move to, clamped to
// before-first
func (br *Browser) PreviousIndex() int {
	if br.pos <= 0 {
		return -1
	}
	return br.pos - 1
}

// Next advances the cursor and resolves the new id. A resolution failure
// is logged and the current picture is left unchanged; the cursor still
// moves.
func (br *Browser) Next() *Picture {
	if !br.HasNext() {
		return br.current
	}
	br.pos++
	br.resolve()
	return br.current
}

// Previous moves the cursor back and resolves the new id, symmetric to
// Next
func (br *Browser) Previous() *Picture {
	if !br.HasPrevious() {
		return br.current
	}
	br.pos--
	br.resolve()
	return br.current
}

func (br *Browser) resolve() {
	pic, err := br.bank.cache.Get(br.ids[br.pos])
	if err != nil {
		log.Printf("browser: failed to resolve picture %s: %v", br.ids[br.pos], err)
		return
	}
	br.current = pic
}

// GetPictures resolves the id range [begin, end) without moving the
// cursor, for prefetch and preview. Unlike Next/Previous, a resolution
// failure propagates to the caller.
func (br *Browser) GetPictures(begin, end int) ([]*Picture, error) {
	if begin < 0 || end > len(br.ids) || begin > end {
		return nil, fmt.Errorf("invalid picture range [%d, %d) for sequence of length %d", begin, end, len(br.ids))
	}
	pics := make([]*Picture, 0, end-begin)
	for i := begin; i < end; i++ {
		pic, err := br.bank.cache.Get(br.ids[i])
		if err != nil {
			return nil, err
		}
		pics = append(pics, pic)
	}
	return pics, nil
}

// NextPictures resolves up to n pictures following the cursor without
// moving it
func (br *Browser) NextPictures(n int) ([]*Picture, error) {
	begin := br.pos + 1
	if begin < 0 {
		begin = 0
	}
	end := begin + n
	if end > len(br.ids) {
		end = len(br.ids)
	}
	if begin > end {
		begin = end
	}
	return br.GetPictures(begin, end)
}

// PreviousPictures resolves up to n pictures preceding the cursor
// without moving it
func (br *Browser) PreviousPictures(n int) ([]*Picture, error) {
	end := br.pos
	if end > len(br.ids) {
		end = len(br.ids)
	}
	if end < 0 {
		end = 0
	}
	begin := end - n
	if begin < 0 {
		begin = 0
	}
	return br.GetPictures(begin, end)
}

// tag repository pass-throughs, so browsing and tagging share one object

func (br *Browser) GetTag(id int64) (*tags.Tag, error) { return br.bank.tags.GetTag(id) }

func (br *Browser) GetTagByName(name string) (*tags.Tag, error) {
	return br.bank.tags.GetTagByName(name)
}

func (br *Browser) RootTag() *tags.Tag            { return br.bank.tags.RootTag() }
func (br *Browser) TagSet() []*tags.Tag           { return br.bank.tags.TagSet() }
func (br *Browser) HasTagNamed(name string) bool  { return br.bank.tags.HasTagNamed(name) }
func (br *Browser) RecentlyUsedTags() []*tags.Tag { return br.bank.tags.RecentlyUsed() }
func (br *Browser) AddLastUsedTag(t *tags.Tag)    { br.bank.tags.AddLastUsed(t) }

func (br *Browser) AddTag(parent *tags.Tag, name, description string, selectable bool) (*tags.Tag, error) {
	return br.bank.tags.AddTag(parent, name, description, selectable)
}

func (br *Browser) EditTag(id int64, name, description string, selectable bool, parentID int64) error {
	return br.bank.tags.EditTag(id, name, description, selectable, parentID)
}

func (br *Browser) RemoveTag(id int64) error { return br.bank.tags.RemoveTag(id) }
