// Package api serves the stored presale snapshots and the refresh controls over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/summerlia/zhuhaibay/utils"
)

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON marshals v as JSON and writes it to w with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any, logger *utils.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil && logger != nil {
		logger.Error("[api] failed to write JSON response: %v", err)
	}
}

// WriteData writes a successful envelope around data.
func WriteData(w http.ResponseWriter, status int, data any, logger *utils.Logger) {
	WriteJSON(w, status, Response{Success: true, Data: data}, logger)
}

// WriteError writes a failed envelope. data may be nil.
func WriteError(w http.ResponseWriter, status int, msg string, data any, logger *utils.Logger) {
	WriteJSON(w, status, Response{Success: false, Data: data, Error: msg}, logger)
}
