package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var retimeCmd = &cobra.Command{
	Use:   "retime <name>",
	Short: "Rename a local migration directory to the current timestamp",
	Args:  cobra.ExactArgs(1),
	RunE:  runRetime,
}

func init() {
	rootCmd.AddCommand(retimeCmd)
}

func runRetime(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s := store(cfg)

	local, err := s.Load()
	if err != nil {
		return err
	}

	m, ok := findMigration(local, name)
	if !ok {
		return fmt.Errorf("no migration named %s", name)
	}

	newCompoundName := fmt.Sprintf("%s_%s", time.Now().UTC().Format("20060102150405"), m.Name)

	if err := s.RenameMigration(m.CompoundName, newCompoundName); err != nil {
		return err
	}

	fmt.Println(newCompoundName)
	return nil
}
