package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the JSON response from the health check endpoint.
type HealthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	VectorIndex string `json:"vector_index"`
	Timestamp   string `json:"timestamp"`
}

// HealthChecker interface defines the health check dependency.
// storage.Store and storage.QdrantIndex implement this via their Health() methods.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// NewHealthHandler creates an HTTP handler for the /health endpoint.
// index may be nil when no vector index is configured. The response is 503
// if any configured dependency fails.
func NewHealthHandler(store HealthChecker, index HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Create context with 3-second timeout for health check
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		response := HealthResponse{
			Status:      "healthy",
			Storage:     "ok",
			VectorIndex: "disabled",
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}
		code := http.StatusOK

		if err := store.Health(ctx); err != nil {
			response.Status = "unhealthy"
			response.Storage = "unavailable"
			code = http.StatusServiceUnavailable
		}
		if index != nil {
			response.VectorIndex = "connected"
			if err := index.Health(ctx); err != nil {
				response.Status = "unhealthy"
				response.VectorIndex = "disconnected"
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(response)
	}
}
