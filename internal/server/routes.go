// Package server wires HTTP handlers into a ServeMux for the Campfire
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, file upload, and the stored
// uploads themselves.
func SetupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", WebSocketHandler)
	mux.HandleFunc("/upload", UploadHandler)
	mux.HandleFunc("/uploads/", UploadsHandler)
	return mux
}
