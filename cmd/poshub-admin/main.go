// Command poshub-admin is the operator CLI: dead-letter inspection and redrive, and service token minting
package main

import (
	"fmt"
	"os"

	"poshub/internal/core/version"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd(defaultOpener).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd(open queueOpener) *cobra.Command {
	version.SetService("poshub-admin")
	root := &cobra.Command{
		Use:           "poshub-admin",
		Short:         "Operate the POSHub order pipeline",
		Version:       version.Info().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Bool("json", false, "print JSON instead of a table")

	root.AddCommand(dlqCmd(open))
	root.AddCommand(tokenCmd())
	return root
}
