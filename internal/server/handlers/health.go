package handlers

import "context"

// HealthRequest is the request type for health check (empty).
type HealthRequest struct{}

// HealthResponse reports whether the store finished initializing.
type HealthResponse struct {
	Status  string `json:"status"`
	Sources int    `json:"sources"`
}

// Health returns "ok" once the store is ready, "starting" before.
func (h *RecordHandler) Health(ctx context.Context, req HealthRequest) (*HealthResponse, error) {
	status := "starting"
	select {
	case <-h.store.Ready():
		status = "ok"
	default:
	}
	return &HealthResponse{Status: status, Sources: len(h.store.Registry().IDs())}, nil
}
