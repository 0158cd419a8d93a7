package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weft-ml/weft/internal/export"
	"github.com/weft-ml/weft/internal/registry"
	"github.com/weft-ml/weft/internal/store"
)

// ExportResult is the JSON shape of a completed export.
type ExportResult struct {
	Method string `json:"method"`
	Bytes  int    `json:"bytes"`
	Out    string `json:"out,omitempty"`
	Hash   string `json:"hash,omitempty"`
}

func (r ExportResult) String() string {
	s := fmt.Sprintf("exported %s (%d bytes)", r.Method, r.Bytes)
	if r.Out != "" {
		s += " to " + r.Out
	}
	if r.Hash != "" {
		s += "\nstored as " + r.Hash
	}
	return s
}

// NewExportCommand creates the `weft export` command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var (
		methodName string
		rulesPath  string
		configPath string
		outPath    string
		storePath  string
	)

	cmd := &cobra.Command{
		Use:   "export <script>",
		Short: "Compile a script and export one method as a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, opts)

			mod, err := compileScriptFile(args[0])
			if err != nil {
				return err
			}
			method := mod.Methods()[0]
			if methodName != "" {
				if method = mod.Method(methodName); method == nil {
					return WrapExitError(ExitCommandError, "selecting method",
						fmt.Errorf("no method %q in %s", methodName, args[0]))
				}
			}

			cfg := DefaultExportConfig()
			if configPath != "" {
				if cfg, err = LoadExportConfig(configPath); err != nil {
					return WrapExitError(ExitCommandError, "loading config", err)
				}
			}

			reg := registry.Default()
			if rulesPath != "" {
				manifest, err := registry.LoadManifest(rulesPath)
				if err != nil {
					return WrapExitError(ExitCommandError, "loading rules", err)
				}
				manifest.Install(reg)
				if manifest.Opset != 0 {
					cfg.Opset = manifest.Opset
				}
				out.VerboseLog("installed %d rule(s) from %s", len(manifest.Rules), rulesPath)
			}

			data, err := export.ExportGraph(method.Graph, reg, nil, cfg.options(method.Name))
			if err != nil {
				return WrapExitError(ExitFailure, "exporting "+method.Name, err)
			}

			result := ExportResult{Method: method.Name, Bytes: len(data)}
			if outPath != "" {
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return WrapExitError(ExitCommandError, "writing model", err)
				}
				result.Out = outPath
			}
			if storePath != "" {
				s, err := store.Open(storePath)
				if err != nil {
					return WrapExitError(ExitCommandError, "opening store", err)
				}
				defer s.Close()
				hash, err := s.Put(cmd.Context(), method.Name, cfg.Producer.Name, cfg.Opset, data)
				if err != nil {
					return WrapExitError(ExitCommandError, "storing model", err)
				}
				result.Hash = hash
			}
			if outPath == "" && storePath == "" {
				// no destination: the model itself is the output
				_, err := out.Writer.Write(append(data, '\n'))
				return err
			}
			return out.Success(result)
		},
	}

	cmd.Flags().StringVar(&methodName, "method", "", "method to export (default: first)")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "CUE lowering-rule manifest")
	cmd.Flags().StringVar(&configPath, "config", "", "YAML export settings")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the model to this file")
	cmd.Flags().StringVar(&storePath, "store", "", "also store the model in this registry database")
	return cmd
}
