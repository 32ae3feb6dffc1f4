package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newExecCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <command>",
		Short: "Execute a single command and print its result",
		Example: `  docquery exec 'read:bookings:b1'
  docquery exec 'write:bookings::{"status":"pending"}'
  docquery exec 'query:bookings:{"filters":[{"field":"status","op":"==","value":"pending"}],"limit":5}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, logger, err := opts.connect(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer adapter.Close()

			fmt.Fprintln(cmd.OutOrStdout(), adapter.Interact(cmd.Context(), strings.Join(args, " ")))
			return nil
		},
	}
}
