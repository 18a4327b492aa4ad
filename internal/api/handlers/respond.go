package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/stockrisk/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// decodeBody JSON 본문 디코딩 (알 수 없는 필드 거부)
func decodeBody(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

// statusFor 엔진 에러 → HTTP 상태
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, contracts.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, contracts.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrInsufficientData),
		errors.Is(err, contracts.ErrNotPositiveDefinite),
		errors.Is(err, contracts.ErrEmptyAssets):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
