package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ajdavis/mongo-space-time/cmd/internal/bflog"
	"github.com/ajdavis/mongo-space-time/cmd/internal/cmderr"
	"github.com/ajdavis/mongo-space-time/cmd/internal/visualize"
	"github.com/ajdavis/mongo-space-time/pcap"
	"github.com/ajdavis/mongo-space-time/printer"
	"github.com/ajdavis/mongo-space-time/version"
)

var (
	debugFlag        bool
	jsonOutputFlag   bool
	verboseLevelFlag int
)

var rootCmd = &cobra.Command{
	Use:           "mongo-space-time",
	Short:         "Reconstruct space-time diagrams of a MongoDB cluster.",
	Long:          "Turn packet captures and test logs of a cluster into input files for the ShiViz distributed-system visualizer.",
	Version:       version.CLIDisplayString(),
	SilenceErrors: true, // We print our own errors from subcommands in Execute function
	// Cobra's own usage dump is off; Execute prints usage itself for errors
	// not marked as pipeline errors.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if jsonOutputFlag {
			printer.SwitchToJSON()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		if !cmderr.IsPipeline(err) {
			// Print usage for CLI usage errors (e.g. a bad file extension)
			// but not for pipeline errors (e.g. an unreadable capture).
			cmd.Println(cmd.UsageString())
		}

		exitCode := 1
		var exitErr cmderr.ExitError
		if isExitErr := errors.As(err, &exitErr); isExitErr {
			exitCode = exitErr.ExitCode
		}
		printer.Errorf("%s\n", err)
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "If set, outputs detailed information for debugging.")
	rootCmd.PersistentFlags().MarkHidden("debug")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.PersistentFlags().IntVar(&verboseLevelFlag, "verbose-level", 0, "Print debug output at or above this verbosity level.")
	rootCmd.PersistentFlags().MarkHidden("verbose-level")
	viper.BindPFlag("verbose-level", rootCmd.PersistentFlags().Lookup("verbose-level"))

	rootCmd.PersistentFlags().BoolVar(&jsonOutputFlag, "json", false, "Emit log messages as JSON objects.")

	// Semi-secret somewhat-safe flags
	rootCmd.PersistentFlags().IntVar(&pcap.MaxBufferedPagesTotal, "reassembly-pages-total", pcap.MaxBufferedPagesTotal, "Maximum reassembly pages buffered per capture file.")
	rootCmd.PersistentFlags().MarkHidden("reassembly-pages-total")
	viper.BindPFlag("reassembly-pages-total", rootCmd.PersistentFlags().Lookup("reassembly-pages-total"))

	rootCmd.PersistentFlags().IntVar(&pcap.MaxBufferedPagesPerConnection, "reassembly-pages-per-connection", pcap.MaxBufferedPagesPerConnection, "Maximum reassembly pages buffered per connection.")
	rootCmd.PersistentFlags().MarkHidden("reassembly-pages-per-connection")
	viper.BindPFlag("reassembly-pages-per-connection", rootCmd.PersistentFlags().Lookup("reassembly-pages-per-connection"))

	rootCmd.AddCommand(visualize.Cmd)
	rootCmd.AddCommand(bflog.Cmd)
}
