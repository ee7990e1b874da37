package cli

import (
	"bytes"
	"io"
	"os"
	"testing"
)

// resetFlags restores every persistent/global flag variable to its
// zero-ish default between tests, since cobra commands and viper live
// as package-level state shared across the whole suite.
func resetFlags() {
	flagURL = ""
	flagMigrationsDir = ""
	flagSchema = ""
	flagConfigFile = ".crude.toml"
	flagVerbosity = 0
	flagNoColor = true

	flagUpNumber = -1
	flagUpPlanOnly = false
	flagUpSeed = false

	flagDownNumber = 1
	flagDownAll = false
	flagDownPlanOnly = false
	flagDownIgnoreDivergent = false
	flagDownIgnoreUnreversible = false

	flagRedoNumber = 1
	flagRedoAll = false
	flagRedoPlanOnly = false
	flagRedoSeed = false
	flagRedoIgnoreDivergent = false
	flagRedoIgnoreUnreversible = false

	flagFixPlanOnly = false
	flagFixSeed = false
}

// executeCommandCapture runs rootCmd with args, capturing everything the
// command tree writes to os.Stdout (root.go's subcommands print via
// fmt.Println/os.Stdout directly, not cmd.OutOrStdout()).
func executeCommandCapture(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()

	r, w, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("os.Pipe: %v", pipeErr)
	}

	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	rootCmd.SetArgs(args)
	runErr := rootCmd.Execute()

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)

	return buf.String(), runErr
}
