package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// newRootCommand builds a fresh command tree bound to a, cobra's trees
// being single-use (Execute mutates parsed-flag state), so every line of
// a REPL session gets its own tree over the same underlying app state.
func newRootCommand(a *app, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "icnfwd",
		Short:         "control-plane CLI for the icnfwd forwarder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.AddCommand(
		newAddCommand(a),
		newListCommand(a),
		newRemoveCommand(a),
		newSetDebugCommand(a),
		newUnsetDebugCommand(a),
		newCacheCommand(a),
		newQuitCommand(a),
	)
	return root
}

// Execute runs icnfwd: a single command if args is non-empty, or an
// interactive REPL over stdin (one command per line, `quit` or EOF ends
// it) otherwise. It returns the process exit code per spec §6: 0 on
// success of the last command, non-zero if any command failed to parse
// or execute.
func Execute(args []string, in io.Reader, out io.Writer) int {
	a, err := newApp()
	if err != nil {
		fmt.Fprintln(out, "error:", err)
		return 1
	}

	if len(args) > 0 {
		return runLine(a, args, out)
	}

	failed := false
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		code := runLine(a, strings.Fields(line), out)
		failed = failed || code != 0
		if a.quit {
			break
		}
	}
	if failed {
		return 1
	}
	return 0
}

func runLine(a *app, args []string, out io.Writer) int {
	root := newRootCommand(a, out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(out, "error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(Execute(os.Args[1:], os.Stdin, os.Stdout))
}
