package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/lazypower/groundtruth/internal/config"
	"github.com/lazypower/groundtruth/internal/engine"
	"github.com/spf13/cobra"
)

var (
	queryLimit      int
	queryHistorical bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>...",
	Short: "Query the graph, most authoritative content first",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryLimit, "limit", "n", 5, "max entries per authority level (0 = unlimited)")
	queryCmd.Flags().BoolVar(&queryHistorical, "include-superseded", false, "include superseded and obsolete content")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, pickEmbedder(cfg.Embedding, db), cfg.Thresholds)

	result, err := eng.Retrieve(context.Background(), strings.Join(args, " "), engine.QueryOptions{
		Limit:             queryLimit,
		IncludeHistorical: queryHistorical,
	})
	if err != nil {
		return err
	}

	if len(result.Buckets) == 0 {
		fmt.Println("no relevant content")
		return nil
	}

	for _, bucket := range result.Buckets {
		fmt.Printf("[%d] %s\n", bucket.Rank, bucket.Label)
		for _, entry := range bucket.Entries {
			marker := ""
			if entry.Historical {
				marker = " [historical"
				if entry.SupersededBy != "" {
					marker += ", superseded by " + entry.SupersededBy
				}
				marker += "]"
			}
			via := ""
			if entry.Via != "" {
				via = fmt.Sprintf(" (via %s from %s)", entry.Via, entry.ViaID)
			}
			fmt.Printf("  %.2f %s  %s%s%s\n", entry.Similarity, entry.ID, oneLine(entry.Body, 100), via, marker)
		}
	}

	return nil
}

func oneLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		s = s[:n] + "..."
	}
	return s
}
