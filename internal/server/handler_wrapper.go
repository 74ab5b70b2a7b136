package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"

	dberrors "github.com/maruel/recdb/internal/errors"
)

// Wrap wraps a handler function to work as an http.Handler.
// The function must have signature: func(context.Context, In) (*Out, error)
// where In can be unmarshalled from JSON and Out is a struct.
// Path parameters can be extracted by tagging struct fields with `path:"name"`, query
// parameters with `query:"name"`.
//
// Example:
//
//	type GetRecordRequest struct {
//	    Source string `path:"source"`
//	    Key    string `path:"key"`
//	}
//
//	func (h *Handler) GetRecord(ctx context.Context, req GetRecordRequest) (*RecordResponse, error)
func Wrap[In any, Out any](fn func(context.Context, In) (*Out, error)) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		body, err := io.ReadAll(r.Body)
		if err2 := r.Body.Close(); err == nil {
			err = err2
		}
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read request body", "err", err)
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body", nil)
			return
		}
		var input In
		if len(body) > 0 {
			d := json.NewDecoder(bytes.NewReader(body))
			d.DisallowUnknownFields()
			if err := d.Decode(&input); err != nil {
				slog.ErrorContext(ctx, "Failed to decode request body", "err", err)
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
				return
			}
		}
		populatePathParams(r, &input)
		populateQueryParams(r, &input)

		output, err := fn(ctx, input)
		if err != nil {
			status, code, details := classify(err)
			if status >= http.StatusInternalServerError {
				slog.ErrorContext(ctx, "Handler error", "err", err, "status", status, "code", code)
			} else {
				slog.DebugContext(ctx, "Handler error", "err", err, "status", status, "code", code)
			}
			writeError(w, status, code, err.Error(), details)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(output); err != nil {
			slog.ErrorContext(ctx, "Failed to encode response", "err", err)
		}
	})
}

// classify maps a store error to an HTTP status, its code and details.
func classify(err error) (int, string, map[string]any) {
	var verr *dberrors.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest, string(verr.Code()), map[string]any{"fields": verr.Fields}
	}
	var coded dberrors.Coded
	if !errors.As(err, &coded) {
		return http.StatusInternalServerError, "INTERNAL", nil
	}
	var details map[string]any
	var e *dberrors.Error
	if errors.As(err, &e) {
		details = e.Details()
	}
	switch coded.Code() {
	case dberrors.CodeNotFound, dberrors.CodeStoreNotFound:
		return http.StatusNotFound, string(coded.Code()), details
	case dberrors.CodeDuplicateKey:
		return http.StatusConflict, string(coded.Code()), details
	case dberrors.CodeUnsupportedFormat:
		return http.StatusBadRequest, string(coded.Code()), details
	case dberrors.CodeNotInitialized, dberrors.CodeInitializationFailed:
		return http.StatusServiceUnavailable, string(coded.Code()), details
	default:
		return http.StatusInternalServerError, string(coded.Code()), details
	}
}

// populatePathParams extracts path parameters from the request and populates
// struct fields tagged with `path:"paramName"`.
func populatePathParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("path")
		if tag == "" {
			continue
		}
		if v := r.PathValue(tag); v != "" && field.Type.Kind() == reflect.String {
			elem.Field(i).SetString(v)
		}
	}
}

// populateQueryParams extracts query parameters from the request and populates
// struct fields tagged with `query:"paramName"`. Repeated parameters fill []string
// fields.
func populateQueryParams(r *http.Request, input any) {
	elem, ok := structElem(input)
	if !ok {
		return
	}
	query := r.URL.Query()
	typ := elem.Type()
	for i := range typ.NumField() {
		field := typ.Field(i)
		tag := field.Tag.Get("query")
		if tag == "" {
			continue
		}
		values := query[tag]
		if len(values) == 0 || values[0] == "" {
			continue
		}
		//nolint:exhaustive // Only string, int and []string are supported for query params
		switch field.Type.Kind() {
		case reflect.String:
			elem.Field(i).SetString(values[0])
		case reflect.Int:
			if n, err := strconv.Atoi(values[0]); err == nil {
				elem.Field(i).SetInt(int64(n))
			}
		case reflect.Slice:
			if field.Type.Elem().Kind() == reflect.String {
				elem.Field(i).Set(reflect.ValueOf(values))
			}
		default:
		}
	}
}

func structElem(input any) (reflect.Value, bool) {
	val := reflect.ValueOf(input)
	if val.Kind() != reflect.Ptr {
		return reflect.Value{}, false
	}
	elem := val.Elem()
	return elem, elem.Kind() == reflect.Struct
}

// writeError writes an error response as JSON with code and details.
func writeError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
	if len(details) > 0 {
		response["details"] = details
	}
	_ = json.NewEncoder(w).Encode(response)
}
