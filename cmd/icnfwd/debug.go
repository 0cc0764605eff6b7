package main

import "github.com/spf13/cobra"

func newSetDebugCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "set a runtime option",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "debug",
		Short: "raise log verbosity to debug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.SetDebug(true)
			return nil
		},
	})
	return cmd
}

func newUnsetDebugCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unset",
		Short: "unset a runtime option",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "debug",
		Short: "lower log verbosity back to info",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.logger.SetDebug(false)
			return nil
		},
	})
	return cmd
}
