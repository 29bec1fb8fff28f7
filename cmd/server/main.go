package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/campfire-chat/campfire/internal/server"
	"github.com/campfire-chat/campfire/internal/store"
	"github.com/campfire-chat/campfire/internal/userdir"
)

func main() {
	fmt.Println("Starting Campfire chat server...")

	cfg := server.NewConfigFromEnv()
	server.SetConfig(cfg)

	server.InitHub(
		userdir.Open(filepath.Join(cfg.DataDir, "users.json")),
		store.Open(filepath.Join(cfg.DataDir, "messages.json")),
	)
	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(cfg.Port, mux)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		server.RunCleanup(ctx)
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		if err := server.ShutdownServer(httpServer, 10*time.Second); err != nil {
			log.Printf("HTTP shutdown error: %v", err)
		}
		return server.GetHub().Shutdown(5 * time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
