// bub [command] [--dir build-dir]
package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bub-build/bub/internal/msg"
)

var (
	flagDir     string
	flagVerbose bool
	flagJobs    int
)

var rootCmd = &cobra.Command{
	Use:   "bub",
	Short: "bottom-up build tool for native-code projects",
	Long:  `bub plans and drives the build of a native-code project from a configured build directory.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "build directory (bootstrapped by the separate setup tool)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "trace file-state transitions")
	rootCmd.PersistentFlags().IntVarP(&flagJobs, "jobs", "j", runtime.NumCPU(), "number of worker goroutines")
}

// Execute runs the root command, exiting with spec §6's exit codes:
// 0 success, 1 build failure, 2 invalid usage.
func Execute() {
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	if err := rootCmd.Execute(); err != nil {
		if _, ok := err.(usageError); ok {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		msg.Error("%v", err)
		os.Exit(1)
	}
}

// usageError marks a cobra arg-validation failure as exit code 2 rather
// than the generic build-failure exit code 1.
type usageError struct{ error }

func wrapUsage(err error) error {
	if err == nil {
		return nil
	}
	return usageError{err}
}

// noArgs rejects positional arguments with a usageError, so Execute
// reports spec §6's exit code 2 instead of the generic exit code 1.
func noArgs(cmd *cobra.Command, args []string) error {
	return wrapUsage(cobra.NoArgs(cmd, args))
}
