package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/termapps/crude/internal/planner"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of every migration",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := requireURL(cfg); err != nil {
		return err
	}

	ctx := context.Background()

	db, err := openAdapter(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	local, err := store(cfg).Load()
	if err != nil {
		return err
	}

	remote, err := db.LoadMigrations(ctx)
	if err != nil {
		return err
	}

	statuses := planner.New(local, remote, planner.Options{}).Status()

	fmt.Fprint(os.Stdout, out.Status(statuses))
	return nil
}
