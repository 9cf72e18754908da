package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"taskmanager/access"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func statusFor(code access.Code) int {
	switch code {
	case access.CodeNotFound:
		return http.StatusNotFound
	case access.CodeForbidden:
		return http.StatusForbidden
	case access.CodeValidation, access.CodeConflict:
		return http.StatusBadRequest
	case access.CodeUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// writeError renders taxonomy errors with their status; anything else is
// logged and reported as a 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	var e *access.Error
	if errors.As(err, &e) {
		writeJSON(w, statusFor(e.Code), errorBody{Error: e.Message, Fields: e.Fields})
		return
	}
	log.Error("request failed",
		zap.String("request_id", chimiddleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
}

// decode reads a JSON body into v. An empty body decodes to the zero value.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return &access.Error{Code: access.CodeValidation, Message: "JSON parse error - " + err.Error()}
	}
	return nil
}

// pathID reads a numeric URL parameter. Anything unparseable is treated
// as a reference to a row that does not exist.
func pathID(r *http.Request, what string) (uint, error) {
	n, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || n == 0 {
		return 0, access.NotFound(what)
	}
	return uint(n), nil
}

// queryID parses an optional numeric query parameter; ok is false when the
// parameter is absent or not a positive integer.
func queryID(r *http.Request, name string) (id uint, present bool, ok bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, false, false
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, true, false
	}
	return uint(n), true, true
}

// flexID accepts both 5 and "5" in JSON bodies, as form-encoded clients
// tend to send strings.
type flexID uint

func (f *flexID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.New("a valid integer is required")
	}
	*f = flexID(n)
	return nil
}

func flexIDs(in []flexID) []uint {
	out := make([]uint, len(in))
	for i, v := range in {
		out[i] = uint(v)
	}
	return out
}

// optional distinguishes an absent JSON field (Set false) from an
// explicit null (Set true, Value nil).
type optional[T any] struct {
	Set   bool
	Value *T
}

func (o *optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
