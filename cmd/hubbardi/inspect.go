// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/katalvlaran/hubbardi/checkpoint"
	"github.com/katalvlaran/hubbardi/config"
)

func newInspectCmd(g *globals) *cobra.Command {
	var showConfig bool
	cmd := &cobra.Command{
		Use:   "inspect [file]",
		Short: "Summarize the iterations stored in a checkpoint file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := config.Load(g.configPath)
				if err != nil {
					return err
				}
				path = cfg.Filename
			}

			return checkpoint.With(path, func(store *checkpoint.Store) error {
				return inspect(cmd.OutOrStdout(), store, showConfig)
			}, checkpoint.WithReadOnly())
		},
	}
	cmd.Flags().BoolVar(&showConfig, "show-config", false, "also print the stored run configuration")

	return cmd
}

func inspect(w io.Writer, store *checkpoint.Store, showConfig bool) error {
	mu0, ok, err := store.Scalar(checkpoint.NonInteractingMuKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "file: %s\n", store.Path())
	if ok {
		fmt.Fprintf(w, "non-interacting mu: %.10f\n", mu0)
	}
	its, err := store.Iterations()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "iteration\tmu\tdc_energy\tsigma_w")
	for _, n := range its {
		it, err := store.ReadIteration(n)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%.10f\t%.10f\t%t\n", it.Index, it.ChemicalPotential, it.DCEnergy, it.SigmaW != nil)
	}
	if err = tw.Flush(); err != nil {
		return err
	}
	if !showConfig {
		return nil
	}
	b, err := store.Input(ConfigInput)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "---\n%s", b)

	return err
}
