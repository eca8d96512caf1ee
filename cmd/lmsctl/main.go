package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "lmsctl",
		Short:        "Operational tooling for the LMS announcement API",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newMigrateCommand(),
		newDeliverCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
