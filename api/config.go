// Package api provides the HTTP server exposing the contextual memory engine:
// streaming generation, memory inspection, and cross-session consolidation.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8000")
	ListenAddr string
}
