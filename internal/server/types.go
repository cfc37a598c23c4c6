package server

import (
	"time"

	"github.com/aman-zulfiqar/token-aggregator/internal/models"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK bool `json:"ok"` // Service health status
}

// TokensResponse is one page of the served snapshot
type TokensResponse struct {
	Items   []models.TokenRecord `json:"items"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Total   int                  `json:"total"`
	BuiltAt *time.Time           `json:"built_at"`
	Success bool                 `json:"success"`
}

// RefreshResponse reports the snapshot served after a refresh request
type RefreshResponse struct {
	Status      models.Status `json:"status"`
	RecordCount int           `json:"record_count"`
}
