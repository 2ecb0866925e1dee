package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/camden-git/picturebank/bank"
)

// BrowserHandler keeps server-side browsing sessions: each created
// browser gets a uuid handle the client threads through subsequent
// cursor calls. Browsers themselves are single-threaded, so every
// session access holds the handler mutex.
type BrowserHandler struct {
	Bank *bank.Bank

	mu       sync.Mutex
	sessions map[string]*bank.Browser
}

func NewBrowserHandler(b *bank.Bank) *BrowserHandler {
	return &BrowserHandler{Bank: b, sessions: make(map[string]*bank.Browser)}
}

type createBrowserRequest struct {
	Kind      string `json:"kind"` // "all", "search" or "random"
	Query     string `json:"query,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Size      int    `json:"size,omitempty"`
	CurrentID string `json:"current_id,omitempty"`
}

type browserStateResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Size        int    `json:"size"`
	Index       int    `json:"index"`
	HasNext     bool   `json:"has_next"`
	HasPrevious bool   `json:"has_previous"`
	Current     string `json:"current,omitempty"`
}

func browserState(id string, br *bank.Browser) browserStateResponse {
	resp := browserStateResponse{
		ID:          id,
		Kind:        string(br.Kind()),
		Size:        br.Size(),
		Index:       br.Index(),
		HasNext:     br.HasNext(),
		HasPrevious: br.HasPrevious(),
	}
	if cur := br.Current(); cur != nil {
		resp.Current = cur.ID()
	}
	return resp
}

// CreateBrowser opens a new browsing session over the full list, a
// search result or a random sample
func (h *BrowserHandler) CreateBrowser(w http.ResponseWriter, r *http.Request) {
	var req createBrowserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "malformed body")
		return
	}

	var br *bank.Browser
	switch req.Kind {
	case "", string(bank.BrowseAll):
		br = h.Bank.Browse()
	case string(bank.BrowseSearch):
		if req.Query == "" {
			WriteAPIError(w, http.StatusBadRequest, "invalid_request", "search browser requires a query")
			return
		}
		limit := req.Limit
		if limit <= 0 {
			limit = h.Bank.Size()
		}
		created, err := h.Bank.BrowseSearch(req.Query, limit, req.CurrentID)
		if err != nil {
			WriteBankError(w, err)
			return
		}
		br = created
	case string(bank.BrowseRandom):
		if req.Size <= 0 {
			WriteAPIError(w, http.StatusBadRequest, "invalid_request", "random browser requires a positive size")
			return
		}
		br = h.Bank.BrowseRandom(req.Size, req.CurrentID)
	default:
		WriteAPIError(w, http.StatusBadRequest, "invalid_request", "kind must be all, search or random")
		return
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.sessions[id] = br
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, browserState(id, br))
}

func (h *BrowserHandler) session(w http.ResponseWriter, r *http.Request) (string, *bank.Browser, bool) {
	id := chi.URLParam(r, "browser_id")
	h.mu.Lock()
	br, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		WriteAPIError(w, http.StatusNotFound, "not_found", "no such browser session")
		return "", nil, false
	}
	return id, br, true
}

// GetBrowser returns the session's cursor state
func (h *BrowserHandler) GetBrowser(w http.ResponseWriter, r *http.Request) {
	id, br, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	state := browserState(id, br)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

// Next advances the cursor and returns the new state
func (h *BrowserHandler) Next(w http.ResponseWriter, r *http.Request) {
	id, br, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	br.Next()
	state := browserState(id, br)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

// Previous moves the cursor back and returns the new state
func (h *BrowserHandler) Previous(w http.ResponseWriter, r *http.Request) {
	id, br, ok := h.session(w, r)
	if !ok {
		return
	}
	h.mu.Lock()
	br.Previous()
	state := browserState(id, br)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, state)
}

// Pictures resolves a contiguous range without moving the cursor
func (h *BrowserHandler) Pictures(w http.ResponseWriter, r *http.Request) {
	_, br, ok := h.session(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	begin := parseIntOrDefault(q.Get("begin"), 0)
	end := parseIntOrDefault(q.Get("end"), br.Size())

	h.mu.Lock()
	pics, err := br.GetPictures(begin, end)
	h.mu.Unlock()
	if err != nil {
		WriteBankError(w, err)
		return
	}

	ids := make([]string, len(pics))
	for i, p := range pics {
		ids[i] = p.ID()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ids": ids})
}

// CloseBrowser discards a session
func (h *BrowserHandler) CloseBrowser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "browser_id")
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func parseIntOrDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
