package middleware

import (
	"encoding/json"
	"net/http"
)

// errorBody mirrors the API error shape so clients decode middleware
// rejections the same way as handler errors.
type errorBody struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason"`
	Error  string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, reason, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Reason: reason, Error: message})
}
