package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bub-build/bub/internal/cache"
	"github.com/bub-build/bub/internal/msg"
	"github.com/bub-build/bub/internal/worker"
)

// errOutstanding signals spec §6 exit code 1: one or more outstanding
// files remain after a clean scheduler run (should not happen unless a
// cancellation raced the final dispatch).
var errOutstanding = errors.New("build finished with files still outstanding")

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "plan and build the project",
	Args:  noArgs,
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	msg.Verbose = flagVerbose

	p, err := newPlanner(flagDir)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	pool := worker.New(ctx, flagJobs, flagDir)
	pool.Start()

	runErr := p.Run(ctx, pool)
	shutdownErr := pool.Shutdown()

	summary := p.Summary()
	if saveErr := cache.Save(p.Cache, filepath.Join(flagDir, "dependency-cache")); saveErr != nil && runErr == nil {
		runErr = saveErr
	}

	msg.Info("files seen=%d built=%d updated=%d outstanding=%d", summary.Seen, summary.Built, summary.Updated, summary.Outstanding)

	if runErr != nil {
		return runErr
	}
	if shutdownErr != nil {
		return shutdownErr
	}
	if summary.Outstanding > 0 {
		return errOutstanding
	}
	return nil
}
