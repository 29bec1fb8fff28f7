// Package server houses the periodic sweep that deletes stale uploads so
// the upload directory cannot grow without bound.
package server

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// RunCleanup sweeps the upload directory once immediately and then on every
// sweep interval until the context is cancelled. Sweep failures are logged
// and never fatal.
func RunCleanup(ctx context.Context) {
	cfg := currentConfig()

	SweepUploads(cfg.UploadDir, cfg.UploadMaxAge)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SweepUploads(cfg.UploadDir, cfg.UploadMaxAge)
		}
	}
}

// SweepUploads deletes every file in dir whose modification age exceeds
// maxAge. A missing directory is treated as an empty one.
func SweepUploads(dir string, maxAge time.Duration) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Error during file cleanup: %v", err)
		}
		return
	}

	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("Error reading upload info for %s: %v", entry.Name(), err)
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			log.Printf("Error deleting old file %s: %v", entry.Name(), err)
			continue
		}
		log.Printf("Deleted old file: %s", entry.Name())
	}
}
