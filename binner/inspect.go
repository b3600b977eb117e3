package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/next-exp/spectra_go/pkg/engine"
	"github.com/next-exp/spectra_go/pkg/h5store"
	"github.com/next-exp/spectra_go/pkg/spectra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILE",
	Short: "Summarize the spectra saved in an HDF5 file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		debug, err := cmd.Flags().GetBool("debug")
		if err != nil {
			return err
		}
		f, err := h5store.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		p, err := engine.LoadProject(f.Root(), nil, spectra.Options{Logger: logger})
		if err != nil {
			return fmt.Errorf("error loading project from %s: %w", args[0], err)
		}
		printSummary(cmd.OutOrStdout(), p, debug)
		return nil
	},
}

func init() {
	inspectCmd.Flags().BoolP("debug", "d", false, "Dump every spectrum in full")
	rootCmd.AddCommand(inspectCmd)
}

func printSummary(out io.Writer, p *engine.Project, debug bool) {
	for _, s := range p.Spectra() {
		md := s.Metadata()
		fmt.Fprintf(out, "%-20s %-18s %dD stream=%q\n", md.Name, md.Type, md.Dimensions, md.StreamID)
		if count, ok := md.Attributes["total_count"].(float64); ok {
			fmt.Fprintf(out, "  counts: %s\n", humanize.Commaf(count))
		}
		if live, ok := md.Attributes["live_time"]; ok {
			fmt.Fprintf(out, "  live time: %v\n", live)
		}
		if rate, ok := md.Attributes["recent_rate"].(float64); ok {
			fmt.Fprintf(out, "  recent rate: %s/s\n", humanize.FormatFloat("#,###.##", rate))
		}
		if debug {
			fmt.Fprint(out, s.Debug("  "))
		}
	}
}
