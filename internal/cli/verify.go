package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [name]",
	Short: "Verify migrations by applying up, down, then up again",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
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

	if len(args) == 1 {
		name := args[0]
		kept := local[:0]
		for _, m := range local {
			if m.CompoundName == name {
				kept = append(kept, m)
			}
		}
		local = kept
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, m := range local {
		fmt.Printf("Verifying %s...\n", m.CompoundName)

		if err := db.RunUpMigration(ctx, m); err != nil {
			return err
		}
		if err := db.RunDownMigration(ctx, m); err != nil {
			return err
		}
		if err := db.RunUpMigration(ctx, m); err != nil {
			return err
		}

		fmt.Println(" OK")
	}

	return nil
}
