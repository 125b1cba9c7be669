package models

import "time"

// NodeConnection is a configured phoenixd backend. Exactly one connection
// is active at a time; the scheduler only runs payments whose affinity
// matches the active connection (or that have no affinity).
type NodeConnection struct {
	ID        int64     `json:"id"`
	Label     string    `json:"label"`
	URL       string    `json:"url"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNodeConnectionRequest is the request body for registering a node
type CreateNodeConnectionRequest struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}
