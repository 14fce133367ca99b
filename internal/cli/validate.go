package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the task file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, graph, err := ctx.loadTasks()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tasks, %d waves\n", *ctx.taskFile, len(file.Tasks), len(graph.Batches()))
			return nil
		},
	}
	return cmd
}
