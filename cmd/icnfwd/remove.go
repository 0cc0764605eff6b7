package main

import "github.com/spf13/cobra"

func newRemoveCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "remove a connection or route",
	}
	cmd.AddCommand(newRemoveConnectionCommand(a), newRemoveRouteCommand(a))
	return cmd
}

func newRemoveConnectionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connection <name>",
		Short: "unregister a connection or listener face",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ctrl.RemoveConnection(args[0])
		},
	}
}

func newRemoveRouteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <name>",
		Short: "withdraw a FIB route",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.ctrl.RemoveRoute(args[0])
		},
	}
}
