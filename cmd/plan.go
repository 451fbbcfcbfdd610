package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bub-build/bub/internal/msg"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "build the dependency graph and report what would be built, without running any action",
	Args:  noArgs,
	RunE:  runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	msg.Verbose = flagVerbose

	p, err := newPlanner(flagDir)
	if err != nil {
		return err
	}

	summary := p.Summary()
	msg.Info("%d files seen, %d outstanding", summary.Seen, summary.Outstanding)
	for _, a := range p.Queue.Snapshot() {
		msg.Info("would issue #%d %s", a.Number, a.Name)
	}
	return nil
}
