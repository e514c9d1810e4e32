package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show entity, relation, and status counts",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := db.Stats()
	if err != nil {
		return err
	}

	printCounts := func(title string, m map[string]int) {
		if len(m) == 0 {
			return
		}
		fmt.Println(title)
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %-20s %d\n", k, m[k])
		}
	}

	printCounts("entities:", stats.Entities)
	printCounts("relations:", stats.Relations)
	printCounts("statuses:", stats.Statuses)

	return nil
}
