package handlers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/picturebank/bank"
	"github.com/camden-git/picturebank/media"
)

// AssetServer serves stored picture files for one tree straight off the
// sharded store. The picture id in the URL is resolved to its on-disk
// path through the bank, so only banked ids are reachable; the resolved
// path is still checked against the store root to be safe.
func AssetServer(b *bank.Bank, tree media.Tree) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "picture_id")

		pic, err := b.GetPicture(id)
		if err != nil {
			WriteBankError(w, err)
			return
		}

		ext := media.ThumbnailFileExtension
		switch tree {
		case media.TreePictures:
			ext = media.FormatExtension(pic.Format())
		case media.TreeDisplay:
			// natively displayable formats have no display copy; fall
			// back to the original bytes
			if media.IsNativelyDisplayable(pic.Format()) {
				tree = media.TreePictures
				ext = media.FormatExtension(pic.Format())
			} else {
				ext = media.DisplayFileExtension
			}
		}

		fullPath := b.Store().Path(tree, id, ext)
		cleanedPath := filepath.Clean(fullPath)
		if !strings.HasPrefix(cleanedPath, b.Store().BasePath()) {
			WriteAPIError(w, http.StatusBadRequest, "invalid_path", "asset path escapes the store root")
			return
		}

		// stored content is immutable per id, so long client caching is
		// correct
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		http.ServeFile(w, r, cleanedPath)
	}
}
