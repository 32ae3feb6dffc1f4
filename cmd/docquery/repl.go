package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// maxLineBytes bounds a single command read by the repl.
const maxLineBytes = 1 << 20

func newReplCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read commands from stdin and print one result per line",
		Long: `The repl command reads one command per line from standard input and prints
one JSON result envelope per line. Blank lines are skipped; "exit" or "quit" stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, _, logger, err := opts.connect(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer logger.Sync()
			defer adapter.Close()

			out := cmd.OutOrStdout()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				fmt.Fprintln(out, adapter.Interact(cmd.Context(), line))
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		},
	}
}
