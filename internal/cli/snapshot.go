package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <file.json>",
	Short: "Export the whole graph to a JSON snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Save(args[0]); err != nil {
			return err
		}
		fmt.Printf("snapshot written to %s\n", args[0])
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <file.json>",
	Short: "Replay a JSON snapshot into the graph",
	Long:  "Inserts every entity, relation, and vector from the snapshot. Ids already in the graph are skipped, so restoring into a non-empty store merges rather than overwrites.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Restore(args[0]); err != nil {
			return err
		}
		fmt.Printf("restored from %s\n", args[0])
		return nil
	},
}
