package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cicnx/icnfwd/internal/control"
)

func newAddCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "add a connection, listener, or route",
	}
	cmd.AddCommand(newAddConnectionCommand(a), newAddListenerCommand(a), newAddRouteCommand(a))
	return cmd
}

func newAddConnectionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connection <name> <addr>",
		Short: "register an outbound connection face",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.ctrl.AddConnection(args[0], args[1], control.Connection)
			return err
		},
	}
}

func newAddListenerCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "listener <name> <addr>",
		Short: "register a local listening face",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := a.ctrl.AddConnection(args[0], args[1], control.Listener)
			return err
		},
	}
}

func newAddRouteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <name> <prefix> <connection> [weight]",
		Short: "install a FIB route over a prefix name URI",
		Args:  cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			weight := 1
			if len(args) == 4 {
				w, err := strconv.Atoi(args[3])
				if err != nil {
					return err
				}
				weight = w
			}
			return a.ctrl.AddRoute(args[0], args[1], args[2], weight)
		},
	}
}
