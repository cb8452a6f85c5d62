package dto

import "time"

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID        string    `json:"id"`
	ItemName  string    `json:"item_name"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatsResponse is the per-status order count breakdown.
type StatsResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// HealthResponse reports per-dependency health, probed independently.
type HealthResponse struct {
	API   string `json:"api"`
	Store string `json:"store"`
	Queue string `json:"queue"`
}

// Healthy reports whether every dependency probe passed.
func (h HealthResponse) Healthy() bool {
	return h.API == HealthStatusHealthy && h.Store == HealthStatusHealthy && h.Queue == HealthStatusHealthy
}

// Health status values.
const (
	HealthStatusHealthy   = "healthy"
	HealthStatusUnhealthy = "unhealthy"
)
