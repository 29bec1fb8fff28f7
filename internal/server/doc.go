// Package server implements the core HTTP and WebSocket functionality of
// the Campfire chat service.
//
// The implementation is organized into specialized files for configuration,
// hub and session management, clients, routing, uploads, and HTTP handlers
// to keep the codebase maintainable and testable as the project grows.
package server
