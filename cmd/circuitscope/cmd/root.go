package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "circuitscope",
	Short: "circuitscope - interactive circuit simulation from the command line",
	Long: `circuitscope runs DC operating-point simulations of circuit description
files and checks every part against its declared ratings.

Examples:
  circuitscope run rectifier.ckt          # Simulate and report per-part verdicts
  circuitscope run -v --timeout 5s r.ckt  # Verbose run with a longer engine deadline
  circuitscope netlist rectifier.ckt      # Print the generated SPICE netlist`,
	Version: "0.9.0",
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// verboseLogger returns a logger for progress lines, or nil when -v is off.
func verboseLogger(w io.Writer) *log.Logger {
	if !verbose {
		return nil
	}
	return log.New(w, "", 0)
}
