package cli

import (
	"fmt"
	"os"

	"github.com/lazypower/groundtruth/internal/store"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "groundtruth",
	Short: "Authority-aware knowledge graph for decision intelligence",
	Long:  "Groundtruth integrates fragments, decisions, questions, assessments, roadmap items, and gaps into one graph and answers queries with the most authoritative content first. Single Go binary backed by SQLite.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(embedCmd)
}

// openDB resolves the database path (GROUNDTRUTH_DB overrides the default
// under the home directory) and opens it.
func openDB() (*store.DB, error) {
	path := os.Getenv("GROUNDTRUTH_DB")
	if path == "" {
		var err error
		path, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
