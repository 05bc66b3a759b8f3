package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{
				err:   fmt.Errorf("%s: accepts %d argument(s), received %d", cmd.Name(), n, len(args)),
				usage: cmd.UsageString(),
			}
		}
		return nil
	}
}
