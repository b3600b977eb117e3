package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/next-exp/spectra_go/pkg/calibration"
	"github.com/next-exp/spectra_go/pkg/spectra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the spectrum and calibration function types",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Spectra:")
		for _, t := range spectra.DefaultRegistry().Types() {
			fmt.Fprintf(out, "  %s\n", t)
		}
		fmt.Fprintln(out, "Calibration functions:")
		for _, t := range calibration.DefaultRegistry().Types() {
			fmt.Fprintf(out, "  %s\n", t)
		}
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}
