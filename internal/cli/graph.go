package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newGraphCmd(ctx *context) *cobra.Command {
	var batches bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show task execution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, graph, err := ctx.loadTasks()
			if err != nil {
				return err
			}

			if batches {
				for i, wave := range graph.Batches() {
					fmt.Fprintf(cmd.OutOrStdout(), "%d: %s\n", i+1, strings.Join(wave, " "))
				}
				return nil
			}

			for i, name := range graph.Tasks() {
				needs := file.Tasks[name].Needs
				if len(needs) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s (needs %s)\n", i+1, name, strings.Join(needs, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&batches, "batches", false, "Group tasks into parallelizable waves")
	return cmd
}
