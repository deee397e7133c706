package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencircuitlab/circuitscope/pkg/circuitfile"
	"github.com/opencircuitlab/circuitscope/pkg/netlist"
)

var netlistCmd = &cobra.Command{
	Use:   "netlist <file.ckt>",
	Short: "Print the SPICE netlist generated from a circuit description",
	Args:  cobra.ExactArgs(1),
	RunE:  runNetlist,
}

func init() {
	rootCmd.AddCommand(netlistCmd)
}

func runNetlist(cmd *cobra.Command, args []string) error {
	parser, err := circuitfile.NewParser()
	if err != nil {
		return err
	}
	ckt, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}

	text, err := netlist.Generate(ckt.Title, ckt.Parts, ckt.Nets)
	if err != nil {
		return fmt.Errorf("netlist generation failed: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	return nil
}
