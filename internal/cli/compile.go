package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weft-ml/weft/internal/script"
)

// MethodSummary is the JSON shape of one compiled method.
type MethodSummary struct {
	Name    string `json:"name"`
	Inputs  int    `json:"inputs"`
	Outputs int    `json:"outputs"`
	Nodes   int    `json:"nodes"`
}

// NewCompileCommand creates the `weft compile` command.
func NewCompileCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <script>",
		Short: "Compile a script and print its graph IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, opts)

			mod, err := compileScriptFile(args[0])
			if err != nil {
				return err
			}
			out.VerboseLog("compiled %d method(s) from %s", len(mod.Methods()), args[0])

			if opts.Format == "json" {
				var summaries []MethodSummary
				for _, m := range mod.Methods() {
					summaries = append(summaries, MethodSummary{
						Name:    m.Name,
						Inputs:  len(m.Graph.Inputs()),
						Outputs: len(m.Graph.Outputs()),
						Nodes:   len(m.Graph.Nodes()),
					})
				}
				return out.Success(summaries)
			}

			var b strings.Builder
			for i, m := range mod.Methods() {
				if i > 0 {
					b.WriteString("\n")
				}
				fmt.Fprintf(&b, "%s:\n%s", m.Name, m.Graph)
			}
			fmt.Fprint(out.Writer, b.String())
			return nil
		},
	}
}

// compileScriptFile reads and compiles one script, translating the two
// failure modes into their exit codes.
func compileScriptFile(path string) (*script.Module, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "reading script", err)
	}
	mod, err := script.Compile(string(source), script.NoResolver)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "compiling "+path, err)
	}
	return mod, nil
}
