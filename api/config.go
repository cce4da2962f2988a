// Package api provides the HTTP API server for storing and recalling
// context records.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8092")
	ListenAddr string
}
