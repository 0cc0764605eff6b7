package main

import (
	"github.com/spf13/cobra"

	"github.com/cicnx/icnfwd/pkg/icnerr"
)

func newCacheCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "toggle content-store serve/store policy",
	}
	cmd.AddCommand(
		newCacheToggleCommand("serve", a.ctrl.SetCacheServe),
		newCacheToggleCommand("store", a.ctrl.SetCacheStore),
	)
	return cmd
}

func newCacheToggleCommand(name string, set func(bool)) *cobra.Command {
	return &cobra.Command{
		Use:   name + " on|off",
		Short: "toggle cache " + name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "on":
				set(true)
			case "off":
				set(false)
			default:
				return icnerr.New(icnerr.InvalidArgument, "expected on or off, got "+args[0])
			}
			return nil
		},
	}
}
