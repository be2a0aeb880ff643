// Command yaade serves the yaade API and manages its database.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath  string
	secretsPath string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	serve := serveCmd(flags)

	rootCmd := &cobra.Command{
		Use:           "yaade",
		Short:         "Yet another API development environment",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", os.Getenv("YAADE_CONFIG"), "JSON config file")
	rootCmd.PersistentFlags().StringVar(&flags.secretsPath, "secrets", os.Getenv("YAADE_SECRETS"), "JSON file with credentials, applied after --config")

	rootCmd.AddCommand(
		serve,
		migrateCmd(flags),
		versionCmd(),
	)
	return rootCmd
}
