// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/dmft"
)

func newDOSCmd(g *globals) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "dos",
		Short: "Compute and store the lattice spectral functions of the last iteration",
		Long: `Project the real-frequency self-energy of the last stored iteration onto
the lattice, with and without interaction, and store the resulting densities
of states. The broadening is dos.idelta.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := g.load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()
			p, err := cfg.NewProjector(log)
			if err != nil {
				return err
			}

			return checkpoint.With(cfg.Filename, func(store *checkpoint.Store) error {
				sp, err := dmft.SpectralFunctions(cmd.Context(), store, p, cfg.DOS.IDelta, log)
				if err != nil {
					return err
				}
				log.Info("spectral functions stored", zap.Int("iteration", sp.Index), zap.Int("points", sp.Mesh.Len()))
				if quiet {
					return nil
				}

				return writeSpectra(cmd.OutOrStdout(), sp)
			}, checkpoint.WithLogger(log))
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "store without printing the table")

	return cmd
}

// writeSpectra prints ω, A(ω) and A0(ω) as aligned columns.
func writeSpectra(w io.Writer, sp *checkpoint.Spectra) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "# w\tdos\tdos0")
	for i, a := range sp.Total {
		fmt.Fprintf(tw, "%.6f\t%.8e\t%.8e\n", real(sp.Mesh.Point(i)), a, sp.Total0[i])
	}

	return tw.Flush()
}
