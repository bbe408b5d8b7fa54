package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := current().migrate(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
