package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Backfill embeddings for entities without vectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		emb := pickEmbedder(cfg.Embedding, db)
		if emb == nil {
			return fmt.Errorf("no embedder available")
		}
		eng := engine.New(db, emb, cfg.Thresholds)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		n, err := eng.EmbedMissing(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("embedded %d entities (%s)\n", n, emb.Model())
		return nil
	},
}
