// Command botctl is the operator tool: it runs the conversation locally,
// issues admin tokens and manages the schema.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load(".env")

	if err := rootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "botctl",
		Short:         "Operate the astrology bot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(SimulateCommand(), TokenCommand(), MigrateCommand())
	return root
}
