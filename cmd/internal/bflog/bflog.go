package bflog

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ajdavis/mongo-space-time/cmd/internal/cmderr"
	"github.com/ajdavis/mongo-space-time/logfile"
	"github.com/ajdavis/mongo-space-time/shiviz"
)

var outFlag string

var Cmd = &cobra.Command{
	Use:   "bflog [--out FILE] LOGFILE",
	Short: "Render server-maintained vector clocks from a test log.",
	Long: "Read a test log from a cluster patched to maintain node vector" +
		" clocks (the VECCLOCK log component) and write a ShiViz input file" +
		" directly, without packet captures.",
	SilenceUsage: true,
	Args:         cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !strings.HasSuffix(args[0], ".log") {
			return errors.Errorf("file name must end in .log: %s", args[0])
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

		log, err := logfile.ParseFile(args[0])
		if err != nil {
			return cmderr.Pipeline(err)
		}
		if err := shiviz.Write(out, shiviz.EventsFromLog(log)); err != nil {
			return cmderr.Pipeline(err)
		}
		return nil
	},
}

func init() {
	Cmd.Flags().StringVar(
		&outFlag,
		"out",
		"",
		"Write the visualizer input file here instead of stdout.")
}
