package visualize

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ajdavis/mongo-space-time/cmd/internal/cmderr"
	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/shiviz"
	"github.com/ajdavis/mongo-space-time/trace"
)

var outFlag string

var Cmd = &cobra.Command{
	Use:   "visualize [--out FILE] FILE...",
	Short: "Reconstruct an event trace from packet captures and a test log.",
	Long: "Reassemble the intra-cluster wire traffic recorded in one or more" +
		" .pcap files, correlate it with the server identities in a .log" +
		" file, and write a ShiViz input file of send/receive events with" +
		" synthetic vector clocks.",
	SilenceUsage: true,
	Args:         cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pcapPaths, logPaths, err := splitInputFiles(args)
		if err != nil {
			return err
		}
		if len(logPaths) != 1 {
			return errors.Errorf("pass exactly one .log file, got %d", len(logPaths))
		}

		out := io.Writer(os.Stdout)
		if outFlag != "" {
			f, err := os.Create(outFlag)
			if err != nil {
				return cmderr.Pipeline(errors.Wrap(err, "failed to create output file"))
			}
			defer f.Close()
			out = f
		}

		if err := run(out, logPaths[0], pcapPaths); err != nil {
			return cmderr.Pipeline(err)
		}
		return nil
	},
}

// splitInputFiles buckets the positional arguments by extension. Anything
// other than .pcap or .log is CLI misuse.
func splitInputFiles(args []string) (pcapPaths, logPaths []string, err error) {
	for _, name := range args {
		switch {
		case strings.HasSuffix(name, ".pcap"):
			pcapPaths = append(pcapPaths, name)
		case strings.HasSuffix(name, ".log"):
			logPaths = append(logPaths, name)
		default:
			return nil, nil, errors.Errorf("file names must end in .pcap or .log: %s", name)
		}
	}
	return pcapPaths, logPaths, nil
}

func run(out io.Writer, logPath string, pcapPaths []string) error {
	log, err := logfile.ParseFile(logPath)
	if err != nil {
		return err
	}
	msgs, err := trace.ParsePcapFiles(log, pcapPaths...)
	if err != nil {
		return err
	}
	return shiviz.Write(out, shiviz.Synthesize(msgs, log))
}

func init() {
	Cmd.Flags().StringVar(
		&outFlag,
		"out",
		"",
		"Write the visualizer input file here instead of stdout.")
}
