package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:   "repair <name>",
	Short: "Recompute a migration's local hash and update the tracking row",
	Args:  cobra.ExactArgs(1),
	RunE:  runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireURL(cfg); err != nil {
		return err
	}

	local, err := store(cfg).Load()
	if err != nil {
		return err
	}

	m, ok := findMigration(local, name)
	if !ok {
		return fmt.Errorf("no migration named %s", name)
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.UpdateMigrationHash(ctx, m.CompoundName, m.Hash)
}
