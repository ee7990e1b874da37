package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a new empty migration directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runNew,
}

func init() {
	rootCmd.AddCommand(newCmd)
}

func runNew(cmd *cobra.Command, args []string) error {
	name := args[0]
	if name == "init" || name == "rollup" {
		return fmt.Errorf("%q is a reserved migration name", name)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	compoundName := fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102150405"), name)

	if err := store(cfg).CreateMigration(compoundName, "", ""); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, compoundName)
	return nil
}
