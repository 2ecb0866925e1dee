package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/camden-git/picturebank/bank"
	"github.com/camden-git/picturebank/tags"
)

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if len(resp.Errors) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(resp.Errors))
	}
	return resp
}

func TestWriteBankErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not regular file", bank.ErrNotRegularFile, http.StatusBadRequest, "invalid_input"},
		{"invalid grade", bank.ErrInvalidGrade, http.StatusBadRequest, "invalid_grade"},
		{"unknown picture", bank.ErrUnknownPicture, http.StatusNotFound, "not_found"},
		{"unknown tag", tags.ErrUnknownTag, http.StatusNotFound, "not_found"},
		{"duplicate tag name", tags.ErrDuplicateName, http.StatusConflict, "duplicate_tag_name"},
		{"cycle", tags.ErrCycle, http.StatusBadRequest, "invalid_tag_operation"},
		{"root immutable", tags.ErrRootImmutable, http.StatusBadRequest, "invalid_tag_operation"},
		{"transform failure", &bank.TransformError{Path: "x.jpg", Err: errors.New("bad pixels")}, http.StatusUnprocessableEntity, "transform_failed"},
		{"store failure", &bank.StoreError{Op: "sql", Ref: "abc", Err: errors.New("disk full")}, http.StatusInternalServerError, "store_failure"},
		{"unknown error", errors.New("mystery"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteBankError(rec, tc.err)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			resp := decodeAPIError(t, rec)
			if resp.Errors[0].Code != tc.wantCode {
				t.Errorf("code = %s, want %s", resp.Errors[0].Code, tc.wantCode)
			}
		})
	}
}

func TestWrappedErrorsStillMap(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteBankError(rec, fmt.Errorf("picture abc: %w", bank.ErrUnknownPicture))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected wrapped sentinel to map to 404, got %d", rec.Code)
	}
}
