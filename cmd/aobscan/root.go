package main

import (
	"fmt"
	"io"

	"github.com/praetorian-inc/aobscan/pkg/scanner"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "aobscan",
	Short: "aobscan - array-of-bytes signature scanner",
	Long: `aobscan finds byte signatures in files, archives, and git history.
A signature is a string of hexadecimal byte pairs where "??" matches any byte,
for example "7F 45 4C 46 ?? ?? 01". Each rule reports the first occurrence of
its signature and every later one, adjusted by the rule offset.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mergeCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// stderrLogger writes debug lines to stderr when --verbose is set.
type stderrLogger struct {
	w io.Writer
}

// Log implements scanner.DebugLogger.
func (l stderrLogger) Log(format string, args ...any) {
	fmt.Fprintf(l.w, "[debug] "+format+"\n", args...)
}

func newLogger(cmd *cobra.Command) scanner.DebugLogger {
	if !verbose || quiet {
		return scanner.NoopLogger{}
	}
	return stderrLogger{w: cmd.ErrOrStderr()}
}

// warnf reports a non-fatal problem unless --quiet is set.
func warnf(cmd *cobra.Command, format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "[warn] "+format+"\n", args...)
}
