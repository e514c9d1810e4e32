package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync <bundle.json>...",
	Short: "Integrate entity bundles into the graph",
	Long:  "Reads one or more JSON bundle files and integrates their fragments, roadmap items, questions, decisions, and assessments. Re-running a bundle is a no-op for entities already in the graph.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSync,
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, pickEmbedder(cfg.Embedding, db), cfg.Thresholds)

	partial := false
	for _, path := range args {
		report, err := eng.Sync(context.Background(), engine.FileSource{Path: path})
		if err != nil && !errors.Is(err, engine.ErrSyncPartial) {
			return err
		}

		fmt.Printf("%s: ", path)
		total := 0
		for kind, n := range report.Created {
			fmt.Printf("%d %s ", n, kind)
			total += n
		}
		if total == 0 {
			fmt.Print("nothing new ")
		}
		if report.Skipped > 0 {
			fmt.Printf("(%d already present) ", report.Skipped)
		}
		fmt.Printf("in %s\n", report.Duration.Round(time.Millisecond))

		for _, f := range report.Failures {
			fmt.Fprintf(os.Stderr, "  failed %s %s: %s\n", f.Kind, f.ID, f.Err)
			partial = true
		}
	}

	if partial {
		return engine.ErrSyncPartial
	}
	return nil
}
