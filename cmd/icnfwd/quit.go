package main

import "github.com/spf13/cobra"

func newQuitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "quit",
		Short: "end the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.quit = true
			return nil
		},
	}
}
