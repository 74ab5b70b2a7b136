package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	dberrors "github.com/maruel/recdb/internal/errors"
	"github.com/maruel/recdb/internal/record"
	"github.com/maruel/recdb/internal/store"
)

// RecordHandler serves read-only views of a store.
type RecordHandler struct {
	store *store.Store
}

// NewRecordHandler creates a new record handler.
func NewRecordHandler(st *store.Store) *RecordHandler {
	return &RecordHandler{store: st}
}

// SourceInfo describes one source.
type SourceInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PrimaryKey  string `json:"primaryKey"`
	Records     int    `json:"records"`
}

// ListSourcesRequest is the request for ListSources (empty).
type ListSourcesRequest struct{}

// ListSourcesResponse lists every declared source.
type ListSourcesResponse struct {
	DefaultView string       `json:"defaultView,omitempty"`
	Sources     []SourceInfo `json:"sources"`
}

// ListSources returns the declared sources with their record counts.
func (h *RecordHandler) ListSources(ctx context.Context, req ListSourcesRequest) (*ListSourcesResponse, error) {
	reg := h.store.Registry()
	resp := &ListSourcesResponse{DefaultView: reg.DefaultView(), Sources: []SourceInfo{}}
	for _, id := range reg.IDs() {
		src, _ := reg.Source(id)
		recs, err := h.store.GetAll(ctx, id)
		if err != nil {
			return nil, err
		}
		resp.Sources = append(resp.Sources, SourceInfo{ID: id, DisplayName: src.DisplayName, PrimaryKey: src.PrimaryKey, Records: len(recs)})
	}
	return resp, nil
}

// ListRecordsRequest selects records. Filter values are field=value.
type ListRecordsRequest struct {
	Source string   `path:"source"`
	Q      string   `query:"q"`
	Filter []string `query:"filter"`
}

// RecordsResponse carries records of one source.
type RecordsResponse struct {
	Source  string          `json:"source"`
	Records []record.Record `json:"records"`
}

// ListRecords searches and filters the records of a source.
func (h *RecordHandler) ListRecords(ctx context.Context, req ListRecordsRequest) (*RecordsResponse, error) {
	q := store.Query{SearchTerm: req.Q, Filters: map[string]string{}}
	for _, f := range req.Filter {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			verr := &dberrors.ValidationError{Source: req.Source}
			verr.Add("filter", fmt.Sprintf("invalid filter %q: want field=value", f))
			return nil, verr
		}
		q.Filters[k] = v
	}
	recs, err := h.store.SearchAndFilter(ctx, req.Source, q)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []record.Record{}
	}
	return &RecordsResponse{Source: req.Source, Records: recs}, nil
}

// GetRecordRequest names one record.
type GetRecordRequest struct {
	Source string `path:"source"`
	Key    string `path:"key"`
}

// RecordResponse carries one record.
type RecordResponse struct {
	Source string        `json:"source"`
	Record record.Record `json:"record"`
}

// GetRecord returns one record.
func (h *RecordHandler) GetRecord(ctx context.Context, req GetRecordRequest) (*RecordResponse, error) {
	rec, err := h.store.GetRecord(ctx, req.Source, req.Key)
	if err != nil {
		return nil, err
	}
	return &RecordResponse{Source: req.Source, Record: rec}, nil
}

// OptionsRequest names a field.
type OptionsRequest struct {
	Source string `path:"source"`
	Field  string `path:"field"`
}

// OptionsResponse lists the distinct values of a field.
type OptionsResponse struct {
	Values []any `json:"values"`
}

// Options returns the distinct values of a field.
func (h *RecordHandler) Options(ctx context.Context, req OptionsRequest) (*OptionsResponse, error) {
	values, err := h.store.FieldOptions(ctx, req.Source, req.Field)
	if err != nil {
		return nil, err
	}
	return &OptionsResponse{Values: values}, nil
}

// ResolveRequest names a reference value.
type ResolveRequest struct {
	Source string `path:"source"`
	Field  string `path:"field"`
	Value  string `query:"value"`
}

// ResolveResponse carries the resolved display value.
type ResolveResponse struct {
	Value any `json:"value"`
}

// Resolve maps a reference value to the display value of its target.
func (h *RecordHandler) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResponse, error) {
	v, err := h.store.ResolveReference(ctx, req.Source, req.Value, req.Field)
	if err != nil {
		return nil, err
	}
	return &ResolveResponse{Value: v}, nil
}

// SchemaRequest names a source.
type SchemaRequest struct {
	Source string `path:"source"`
}

// Schema returns the JSON Schema of a source's records.
func (h *RecordHandler) Schema(ctx context.Context, req SchemaRequest) (*jsonschema.Schema, error) {
	src, err := h.store.SourceConfig(req.Source)
	if err != nil {
		return nil, err
	}
	return src.JSONSchema(), nil
}

// DashboardRequest is the request for Dashboard (empty).
type DashboardRequest struct{}

// DashboardResponse lists computed metrics.
type DashboardResponse struct {
	Metrics []store.MetricValue `json:"metrics"`
}

// Dashboard computes every declared metric.
func (h *RecordHandler) Dashboard(ctx context.Context, req DashboardRequest) (*DashboardResponse, error) {
	values, err := h.store.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []store.MetricValue{}
	}
	return &DashboardResponse{Metrics: values}, nil
}
