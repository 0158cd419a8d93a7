package cli

import (
	"github.com/spf13/cobra"
)

// NewLintCommand creates the `weft lint` command.
func NewLintCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lint <script>",
		Short: "Compile a script and check graph invariants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, opts)

			mod, err := compileScriptFile(args[0])
			if err != nil {
				return err
			}
			for _, m := range mod.Methods() {
				if err := m.Graph.Lint(); err != nil {
					return WrapExitError(ExitFailure, "method "+m.Name, err)
				}
				out.VerboseLog("%s: ok", m.Name)
			}
			return out.Success("ok")
		},
	}
}
