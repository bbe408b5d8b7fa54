package main

import (
	"github.com/spf13/cobra"
)

type wireFunc func() (*app, error)

func newRootCmd(wire wireFunc) *cobra.Command {
	var a *app

	rootCmd := &cobra.Command{
		Use:          "tryonctl",
		Short:        "Operate the try-on credit ledger",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			built, err := wire()
			if err != nil {
				return err
			}
			a = built
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if a == nil || a.close == nil {
				return nil
			}
			return a.close()
		},
	}

	current := func() *app { return a }
	rootCmd.AddCommand(
		newMigrateCmd(current),
		newLedgerCmd(current),
	)

	return rootCmd
}
