package cmd

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencircuitlab/circuitscope/pkg/circuitfile"
	"github.com/opencircuitlab/circuitscope/pkg/part"
	"github.com/opencircuitlab/circuitscope/pkg/rules"
	"github.com/opencircuitlab/circuitscope/pkg/sim"
	"github.com/opencircuitlab/circuitscope/pkg/spiceengine"
)

var runTimeout time.Duration

var runCmd = &cobra.Command{
	Use:   "run <file.ckt>",
	Short: "Simulate a circuit once and report per-part verdicts",
	Long: `Parse a circuit description, compute its DC operating point with the
in-process engine and check every part against its ratings.

Examples:
  circuitscope run rectifier.ckt
  circuitscope run --timeout 10s big-circuit.ckt`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().DurationVar(&runTimeout, "timeout", sim.DefaultTimeout,
		"abort the engine run after this long")
}

// fileSource adapts a parsed circuit file to the simulator's snapshot
// interface. The CLI runs one shot, so the snapshot never changes.
type fileSource struct {
	ckt *circuitfile.Circuit
}

func (f *fileSource) Snapshot() (*sim.Snapshot, error) {
	return &sim.Snapshot{
		Title: f.ckt.Title,
		Parts: f.ckt.Parts,
		Nets:  f.ckt.Nets,
	}, nil
}

// consolePresenter prints simulation indicators as plain lines.
type consolePresenter struct {
	out io.Writer
}

func (c *consolePresenter) ShowFault(p, _ *part.Part, reason string) {
	fmt.Fprintf(c.out, "FAULT  %-12s %s\n", p.Title, reason)
}

func (c *consolePresenter) ShowDisplay(p, _ *part.Part, text string) {
	fmt.Fprintf(c.out, "SCREEN %-12s [%s]\n", p.Title, text)
}

func (c *consolePresenter) SetBrightness(p, _ *part.Part, ratio float64) {
	fmt.Fprintf(c.out, "LED    %-12s brightness %.0f%%\n", p.Title, ratio*100)
}

func (c *consolePresenter) ShowRotation(p, _ *part.Part, rotation rules.Rotation) {
	fmt.Fprintf(c.out, "MOTOR  %-12s rotation %s\n", p.Title, rotation)
}

func (c *consolePresenter) Clear() {}

func runRun(cmd *cobra.Command, args []string) error {
	parser, err := circuitfile.NewParser()
	if err != nil {
		return err
	}
	ckt, err := parser.ParseFile(args[0])
	if err != nil {
		return err
	}

	if verbose {
		fmt.Printf("Simulating %q (%d parts)\n", ckt.Title, len(ckt.Parts))
	}

	var failed atomic.Bool
	done := make(chan struct{}, 1)

	s := sim.New(spiceengine.New(), &fileSource{ckt: ckt}, &consolePresenter{out: cmd.OutOrStdout()}, sim.Options{
		Timeout: runTimeout,
		Logger:  verboseLogger(cmd.ErrOrStderr()),
		Events: sim.Events{
			RunCompleted: func() {
				done <- struct{}{}
			},
		},
		Warning: func(logText, netlistText string) {
			failed.Store(true)
			fmt.Fprintf(cmd.ErrOrStderr(), "simulation failed:\n%s", logText)
			if verbose && netlistText != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "netlist was:\n%s\n", netlistText)
			}
		},
	})
	defer s.Close()

	s.SetEnabled(true)
	<-done

	if failed.Load() {
		return fmt.Errorf("simulation of %q failed", ckt.Title)
	}
	if verbose {
		fmt.Println("Done")
	}
	return nil
}
