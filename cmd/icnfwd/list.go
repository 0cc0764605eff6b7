package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list connections, interfaces, or routes",
	}
	cmd.AddCommand(
		newListConnectionsCommand(a),
		newListInterfacesCommand(a),
		newListRoutesCommand(a),
	)
	return cmd
}

func newListConnectionsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "connections",
		Short: "list registered connections and listeners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, c := range a.ctrl.ListConnections() {
				state := "down"
				if c.Up {
					state = "up"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tface=%d\tconn=%s\t%s\t%s\n", c.Name, c.Kind, c.FaceID, c.ConnID, c.Addr, state)
			}
			return nil
		},
	}
}

// newListInterfacesCommand is an alias of `list connections`: the face
// table backs both connections and listeners, so "interfaces" (spec §6)
// enumerates the same rows.
func newListInterfacesCommand(a *app) *cobra.Command {
	cmd := newListConnectionsCommand(a)
	cmd.Use = "interfaces"
	cmd.Short = "list registered faces"
	return cmd
}

func newListRoutesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "list installed FIB routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, r := range a.ctrl.ListRoutes() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tface=%d\n", r.Name, r.Prefix, r.FaceID)
			}
			return nil
		},
	}
}
