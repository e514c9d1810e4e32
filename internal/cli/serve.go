package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/lazypower/groundtruth/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, pickEmbedder(cfg.Embedding, db), cfg.Thresholds)

	// Backfill vectors for entities that predate the current embedder.
	if eng.Embedder != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if n, err := eng.EmbedMissing(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "embed missing: %v\n", err)
			} else if n > 0 {
				fmt.Fprintf(os.Stderr, "  embedded %d missing entities\n", n)
			}
		}()
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "groundtruth serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  db: %s\n", db.Path)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
