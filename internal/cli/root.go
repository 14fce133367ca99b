package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/execo/internal/api"
	"github.com/Paintersrp/execo/internal/config"
)

const defaultRunReportLimit = 256

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

func newRootCommand() (*cobra.Command, *context) {
	var taskFile string

	root := &cobra.Command{
		Use:   "execo",
		Short: "Run external programs with bounded lifetimes",
	}

	root.PersistentFlags().
		StringVarP(&taskFile, "file", "f", "tasks.yaml", "Path to task definitions")

	ctx := &context{
		taskFile: &taskFile,
		recorder: api.NewRecorder(defaultRunReportLimit),
	}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newTaskCmd(ctx))
	root.AddCommand(newGraphCmd(ctx))
	root.AddCommand(newValidateCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, ctx
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		var coded *exitCodeError
		if errors.As(err, &coded) {
			if coded.message != "" {
				fmt.Fprintln(os.Stderr, coded.message)
			}
			os.Exit(coded.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	taskFile *string
	recorder *api.Recorder
}

func (c *context) loadTasks() (*config.File, *config.Graph, error) {
	file, err := config.Load(*c.taskFile)
	if err != nil {
		return nil, nil, err
	}
	graph, err := config.BuildGraph(file)
	if err != nil {
		return nil, nil, err
	}
	return file, graph, nil
}

// exitCodeError carries a process exit status through cobra's error return
// without triggering the generic error printer.
type exitCodeError struct {
	code    int
	message string
}

func (e *exitCodeError) Error() string {
	if e.message != "" {
		return e.message
	}
	return fmt.Sprintf("exit status %d", e.code)
}

func exitWithCode(code int) error {
	if code == 0 {
		return nil
	}
	return &exitCodeError{code: code}
}

func supportsInteractiveOutput(cmd *cobra.Command) bool {
	type fdWriter interface {
		Fd() uintptr
	}
	out, ok := cmd.OutOrStdout().(fdWriter)
	if !ok {
		return false
	}
	return term.IsTerminal(int(out.Fd()))
}
