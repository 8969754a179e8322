// Provides middleware for standardizing HTTP handlers.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
)

// Validatable is implemented by every request type.
type Validatable interface {
	Validate() error
}

// apiError carries an HTTP status alongside the message.
type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string { return e.msg }

// Errorf builds an error that surfaces as the given HTTP status.
func Errorf(status int, format string, args ...any) error {
	return &apiError{status: status, msg: fmt.Sprintf(format, args...)}
}

type errorResponse struct {
	Error string `json:"error"`
}

// wrap adapts func(ctx, *In) (*Out, error) into an http.Handler.
//
// The request body (when present) is decoded into In; fields tagged
// `path:"name"` and `query:"name"` are filled from the URL; Validate
// runs before the handler. Mutating handlers take the write rate limit
// tier and land a git snapshot afterwards when versioning is enabled.
func wrap[In any, PtrIn interface {
	*In
	Validatable
}, Out any](s *Server, mutating bool, fn func(context.Context, PtrIn) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		tier := s.readLimit
		if mutating {
			tier = s.writeLimit
		}
		if !tier.allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if s.cfg.RequireAuth {
			if err := s.authenticate(r); err != nil {
				writeError(w, http.StatusUnauthorized, err.Error())
				return
			}
		}

		input := new(In)
		if !readAndDecodeBody(ctx, w, r, input, s.cfg.MaxRequestBodyBytes) {
			return
		}
		populatePathParams(r, input)
		populateQueryParams(r, input)

		if err := PtrIn(input).Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		output, err := fn(ctx, PtrIn(input))
		if mutating {
			s.snapshot(ctx, r)
		}
		writeJSONResponse(ctx, w, output, err)
	})
}

// snapshot commits data directory changes after a mutating request.
//
// It runs regardless of handler outcome: if the handler wrote data
// before returning an error, the change is already on disk and must be
// tracked. A clean tree is a no-op.
func (s *Server) snapshot(ctx context.Context, r *http.Request) {
	if s.git == nil {
		return
	}
	msg := fmt.Sprintf("%s %s", r.Method, r.URL.Path)
	if err := s.git.CommitChanges(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to commit data changes", "err", err)
	}
}

// readAndDecodeBody reads the request body with a size limit and decodes
// JSON into input. Returns false if an error occurred and was written to
// the response.
func readAndDecodeBody[In any](ctx context.Context, w http.ResponseWriter, r *http.Request, input *In, maxBytes int64) bool {
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	body, err := io.ReadAll(r.Body)
	if err2 := r.Body.Close(); err == nil {
		err = err2
	}
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", maxBytesErr.Limit))
			return false
		}
		slog.ErrorContext(ctx, "Failed to read request body", "err", err)
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return false
	}
	if len(body) > 0 {
		d := json.NewDecoder(bytes.NewReader(body))
		d.DisallowUnknownFields()
		if err := d.Decode(input); err != nil {
			slog.ErrorContext(ctx, "Failed to decode request body", "err", err)
			writeError(w, http.StatusBadRequest, "invalid request body")
			return false
		}
	}
	return true
}

// writeJSONResponse writes the handler's output or its error.
func writeJSONResponse[Out any](ctx context.Context, w http.ResponseWriter, output *Out, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			status = apiErr.status
		}
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(ctx, "Handler error", "err", err, "status", status)
		}
		writeError(w, status, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(output); err != nil {
		slog.ErrorContext(ctx, "Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: msg}); err != nil {
		slog.Error("Failed to encode error response", "err", err)
	}
}

// populatePathParams fills struct fields tagged `path:"name"` from the
// request's path values.
func populatePathParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		tag := typ.Field(i).Tag.Get("path")
		if tag == "" {
			continue
		}
		if v := r.PathValue(tag); v != "" && typ.Field(i).Type.Kind() == reflect.String {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams fills struct fields tagged `query:"name"` from the
// URL query.
func populateQueryParams(r *http.Request, input any) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Pointer {
		return
	}
	elem := val.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		tag := typ.Field(i).Tag.Get("query")
		if tag == "" {
			continue
		}
		v := query.Get(tag)
		if v == "" {
			continue
		}
		fieldVal := elem.Field(i)
		switch typ.Field(i).Type.Kind() {
		case reflect.String:
			fieldVal.SetString(v)
		case reflect.Int:
			if n, err := strconv.Atoi(v); err == nil {
				fieldVal.SetInt(int64(n))
			}
		}
	}
}
