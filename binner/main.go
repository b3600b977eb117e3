// Command binner bins detector streams into spectra and inspects the HDF5
// files it writes.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var logger Logger

func init() {
	logger = NewLogger(os.Stdout, os.Stderr, 0)
}

var rootCmd = &cobra.Command{
	Use:   "binner",
	Short: "Bin detector event streams into spectra",
	Long: `binner runs an acquisition that bins spills from one or more streams
into the spectra of a project, and saves the project to an HDF5 file.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
