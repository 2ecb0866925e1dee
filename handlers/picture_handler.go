package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/picturebank/bank"
	"github.com/camden-git/picturebank/tags"
)

// PictureHandler exposes ingestion and picture mutation over HTTP
type PictureHandler struct {
	Bank *bank.Bank
}

type pictureResponse struct {
	ID           string      `json:"id"`
	OriginalName string      `json:"original_name"`
	Format       string      `json:"format"`
	Grade        int         `json:"grade"`
	AddedAt      int64       `json:"adding_timestamp"`
	ModifiedAt   int64       `json:"modified_timestamp"`
	Tags         []*tags.Tag `json:"tags"`
	Metadata     interface{} `json:"metadata"`
	Duplicate    bool        `json:"duplicate,omitempty"`
}

func (h *PictureHandler) pictureJSON(p *bank.Picture, duplicate bool) pictureResponse {
	return pictureResponse{
		ID:           p.ID(),
		OriginalName: p.OriginalName(),
		Format:       p.Format(),
		Grade:        p.Grade(),
		AddedAt:      p.AddedAt().Unix(),
		ModifiedAt:   p.ModifiedAt().Unix(),
		Tags:         h.Bank.Tags().ResolveAll(p.TagIDs()),
		Metadata:     p.Metadata(),
		Duplicate:    duplicate,
	}
}

// resolveTagNames maps tag names to tags, failing on the first unknown
// name
func (h *PictureHandler) resolveTagNames(names []string) ([]*tags.Tag, error) {
	resolved := make([]*tags.Tag, 0, len(names))
	for _, name := range names {
		t, err := h.Bank.Tags().GetTagByName(name)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, t)
	}
	return resolved, nil
}

type addPictureRequest struct {
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

// AddPicture ingests a single file. A duplicate is not an error: the
// existing picture comes back with duplicate=true and the union of tags.
func (h *PictureHandler) AddPicture(w http.ResponseWriter, r *http.Request) {
	var req addPictureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "body must contain a path")
		return
	}

	applyTags, err := h.resolveTagNames(req.Tags)
	if err != nil {
		WriteBankError(w, err)
		return
	}

	pic, err := h.Bank.SyncAddPicture(req.Path, applyTags)
	if err != nil {
		var dup *bank.DuplicateError
		if errors.As(err, &dup) {
			writeJSON(w, http.StatusOK, h.pictureJSON(pic, true))
			return
		}
		WriteBankError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.pictureJSON(pic, false))
}

type importRequest struct {
	Path string   `json:"path"`
	Tags []string `json:"tags"`
}

type importResponse struct {
	Added      int               `json:"added"`
	Errors     map[string]string `json:"errors"`
	Duplicates map[string]string `json:"duplicates"`
	Aborted    string            `json:"aborted,omitempty"`
}

// ImportDirectory bulk-ingests a directory tree, returning the batch
// summary even when the walk aborted on a store error
func (h *PictureHandler) ImportDirectory(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "body must contain a path")
		return
	}

	applyTags, err := h.resolveTagNames(req.Tags)
	if err != nil {
		WriteBankError(w, err)
		return
	}

	report, walkErr := h.Bank.AddDirectory(req.Path, applyTags)
	resp := importResponse{
		Added:      report.Added,
		Errors:     make(map[string]string, len(report.Errors)),
		Duplicates: report.Duplicates,
	}
	for path, e := range report.Errors {
		resp.Errors[path] = e.Error()
	}
	status := http.StatusOK
	if walkErr != nil {
		resp.Aborted = walkErr.Error()
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

// GetPicture returns one picture by id
func (h *PictureHandler) GetPicture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "picture_id")
	pic, err := h.Bank.GetPicture(id)
	if err != nil {
		WriteBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.pictureJSON(pic, false))
}

type updatePictureRequest struct {
	Grade      *int     `json:"grade,omitempty"`
	AddTags    []string `json:"add_tags,omitempty"`
	RemoveTags []string `json:"remove_tags,omitempty"`
}

// UpdatePicture mutates a resident picture; persistence happens through
// the write-back queue, so this returns before the row is updated
func (h *PictureHandler) UpdatePicture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "picture_id")
	pic, err := h.Bank.GetPicture(id)
	if err != nil {
		WriteBankError(w, err)
		return
	}

	var req updatePictureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	if req.Grade != nil {
		if err := pic.SetGrade(*req.Grade); err != nil {
			WriteBankError(w, err)
			return
		}
	}

	for _, name := range req.AddTags {
		t, err := h.Bank.Tags().GetTagByName(name)
		if err != nil {
			WriteBankError(w, err)
			return
		}
		if pic.AddTag(t.ID) {
			h.Bank.Tags().AddLastUsed(t)
		}
	}
	for _, name := range req.RemoveTags {
		t, err := h.Bank.Tags().GetTagByName(name)
		if err != nil {
			WriteBankError(w, err)
			return
		}
		pic.RemoveTag(t.ID)
	}

	writeJSON(w, http.StatusOK, h.pictureJSON(pic, false))
}

// DeletePicture removes a picture from all stores
func (h *PictureHandler) DeletePicture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "picture_id")
	if err := h.Bank.DeletePicture(id); err != nil {
		WriteBankError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReindexPicture force-resyncs one picture's search document
func (h *PictureHandler) ReindexPicture(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "picture_id")
	if err := h.Bank.ReindexPicture(id); err != nil {
		WriteBankError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckBank re-synchronizes the whole bank into the search index
func (h *PictureHandler) CheckBank(w http.ResponseWriter, r *http.Request) {
	if err := h.Bank.CheckAll(); err != nil {
		WriteBankError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
