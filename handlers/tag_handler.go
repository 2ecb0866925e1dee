package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/picturebank/bank"
	"github.com/camden-git/picturebank/tags"
)

// TagHandler exposes the tag repository over HTTP
type TagHandler struct {
	Bank *bank.Bank
}

func parseTagID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "tag_id"), 10, 64)
}

// ListTags returns all tags sorted by name
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Bank.Tags().TagSet())
}

// GetTag returns one tag by id
func (h *TagHandler) GetTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseTagID(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag_id", "tag id must be an integer")
		return
	}
	tag, err := h.Bank.Tags().GetTag(id)
	if err != nil {
		WriteBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

type createTagRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Selectable  *bool  `json:"selectable"`
	ParentID    *int64 `json:"parent_id"`
}

// CreateTag adds a tag under the given parent (root when omitted)
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	var parent *tags.Tag
	if req.ParentID != nil {
		p, err := h.Bank.Tags().GetTag(*req.ParentID)
		if err != nil {
			WriteBankError(w, err)
			return
		}
		parent = p
	}
	selectable := true
	if req.Selectable != nil {
		selectable = *req.Selectable
	}

	tag, err := h.Bank.Tags().AddTag(parent, req.Name, req.Description, selectable)
	if err != nil {
		WriteBankError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

type updateTagRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Selectable  *bool   `json:"selectable"`
	ParentID    *int64  `json:"parent_id"`
}

// UpdateTag edits a tag in place; omitted fields keep their value
func (h *TagHandler) UpdateTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseTagID(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag_id", "tag id must be an integer")
		return
	}
	current, err := h.Bank.Tags().GetTag(id)
	if err != nil {
		WriteBankError(w, err)
		return
	}

	var req updateTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	name := current.Name
	if req.Name != nil {
		name = *req.Name
	}
	description := current.Description
	if req.Description != nil {
		description = *req.Description
	}
	selectable := current.Selectable
	if req.Selectable != nil {
		selectable = *req.Selectable
	}
	parentID := current.ParentID
	if req.ParentID != nil {
		parentID = *req.ParentID
	}

	if err := h.Bank.Tags().EditTag(id, name, description, selectable, parentID); err != nil {
		WriteBankError(w, err)
		return
	}
	tag, err := h.Bank.Tags().GetTag(id)
	if err != nil {
		WriteBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

// DeleteTag removes a tag, re-parenting its children to root
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	id, err := parseTagID(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag_id", "tag id must be an integer")
		return
	}
	if err := h.Bank.Tags().RemoveTag(id); err != nil {
		WriteBankError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RecentTags returns the recently-applied tags, most recent first
func (h *TagHandler) RecentTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Bank.Tags().RecentlyUsed())
}

// TagChildren returns a tag's children resolved through the repository
func (h *TagHandler) TagChildren(w http.ResponseWriter, r *http.Request) {
	id, err := parseTagID(r)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag_id", "tag id must be an integer")
		return
	}
	children, err := h.Bank.Tags().Children(id)
	if err != nil {
		WriteBankError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, children)
}
