// Package jsonresp writes the {success, message, ...} envelopes every API
// endpoint returns.
package jsonresp

import (
	"encoding/json"
	"net/http"
)

// Error is the body of a failed request.
type Error struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// Write encodes v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 with v.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Fail writes {success:false, message}.
func Fail(w http.ResponseWriter, status int, message string) {
	Write(w, status, Error{Success: false, Message: message})
}

// FailCode writes {success:false, message, code} so clients can branch on
// a stable code rather than the message text.
func FailCode(w http.ResponseWriter, status int, message, code string) {
	Write(w, status, Error{Success: false, Message: message, Code: code})
}

// Invalid writes a 400 listing validation problems.
func Invalid(w http.ResponseWriter, message string, problems []string) {
	Write(w, http.StatusBadRequest, Error{Success: false, Message: message, Errors: problems})
}

// Decode reads a JSON request body into v, capped at limit bytes.
func Decode(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
