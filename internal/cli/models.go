package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weft-ml/weft/internal/store"
)

// ModelListing is the JSON shape of one stored model.
type ModelListing struct {
	Hash      string `json:"hash"`
	Name      string `json:"name"`
	Producer  string `json:"producer"`
	Opset     int64  `json:"opset"`
	CreatedAt string `json:"created_at"`
}

// NewModelsCommand creates the `weft models` command group.
func NewModelsCommand(opts *RootOptions) *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the model registry",
	}
	cmd.PersistentFlags().StringVar(&storePath, "store", "weft.db", "registry database path")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, opts)

			s, err := store.Open(storePath)
			if err != nil {
				return WrapExitError(ExitCommandError, "opening store", err)
			}
			defer s.Close()

			models, err := s.List(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "listing models", err)
			}

			if opts.Format == "json" {
				listings := make([]ModelListing, 0, len(models))
				for _, m := range models {
					listings = append(listings, listing(m))
				}
				return out.Success(listings)
			}
			var b strings.Builder
			for _, m := range models {
				fmt.Fprintf(&b, "%s  %s (opset %d, %s)\n", m.Hash[:12], m.Name, m.Opset, m.Producer)
			}
			if len(models) == 0 {
				b.WriteString("no models\n")
			}
			fmt.Fprint(out.Writer, b.String())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <hash>",
		Short: "Print a stored model payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(cmd, opts)

			s, err := store.Open(storePath)
			if err != nil {
				return WrapExitError(ExitCommandError, "opening store", err)
			}
			defer s.Close()

			m, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "reading model", err)
			}
			_, err = out.Writer.Write(append(m.Payload, '\n'))
			return err
		},
	})

	return cmd
}

func listing(m store.Model) ModelListing {
	return ModelListing{
		Hash:      m.Hash,
		Name:      m.Name,
		Producer:  m.Producer,
		Opset:     m.Opset,
		CreatedAt: m.CreatedAt,
	}
}
