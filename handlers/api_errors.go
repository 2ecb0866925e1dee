package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/camden-git/picturebank/bank"
	"github.com/camden-git/picturebank/tags"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// WriteBankError translates the bank/tag error taxonomy to HTTP statuses
func WriteBankError(w http.ResponseWriter, err error) {
	var transformErr *bank.TransformError
	var storeErr *bank.StoreError

	switch {
	case errors.Is(err, bank.ErrNotRegularFile):
		WriteAPIError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, bank.ErrInvalidGrade):
		WriteAPIError(w, http.StatusBadRequest, "invalid_grade", err.Error())
	case errors.Is(err, bank.ErrUnknownPicture), errors.Is(err, tags.ErrUnknownTag):
		WriteAPIError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, tags.ErrDuplicateName):
		WriteAPIError(w, http.StatusConflict, "duplicate_tag_name", err.Error())
	case errors.Is(err, tags.ErrEmptyName), errors.Is(err, tags.ErrCycle),
		errors.Is(err, tags.ErrRootImmutable), errors.Is(err, tags.ErrIDExhausted):
		WriteAPIError(w, http.StatusBadRequest, "invalid_tag_operation", err.Error())
	case errors.As(err, &transformErr):
		WriteAPIError(w, http.StatusUnprocessableEntity, "transform_failed", err.Error())
	case errors.As(err, &storeErr):
		WriteAPIError(w, http.StatusInternalServerError, "store_failure", err.Error())
	default:
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
