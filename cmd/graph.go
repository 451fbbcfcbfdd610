package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bub-build/bub/internal/msg"
	"github.com/bub-build/bub/internal/planner"
)

var flagDot bool

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "print the action dependency graph",
	Args:  noArgs,
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().BoolVar(&flagDot, "dot", false, "emit Graphviz DOT instead of plain text")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	msg.Verbose = flagVerbose

	p, err := newPlanner(flagDir)
	if err != nil {
		return err
	}

	if flagDot {
		fmt.Println(dotGraph(p))
		return nil
	}
	for _, line := range textGraph(p) {
		fmt.Println(line)
	}
	return nil
}

// textGraph renders every action and its dependency edges as plain
// "#N name <- dep, dep, ..." lines, ordered by action number.
func textGraph(p *planner.Planner) []string {
	actions := sortedActions(p)
	lines := make([]string, 0, len(actions))
	for _, a := range actions {
		deps := depNames(a)
		lines = append(lines, fmt.Sprintf("#%d %s <- %s", a.Number, a.Name, strings.Join(deps, ", ")))
	}
	return lines
}

// dotGraph renders the same graph as a Graphviz digraph, one node per
// action and one edge per dependency.
func dotGraph(p *planner.Planner) string {
	actions := sortedActions(p)
	out := "digraph bub {\n"
	for _, a := range actions {
		out += fmt.Sprintf("  %q [label=%q];\n", a.Name, fmt.Sprintf("#%d %s", a.Number, a.Name))
	}
	for _, a := range actions {
		for _, dep := range depNames(a) {
			out += fmt.Sprintf("  %q -> %q;\n", dep, a.Name)
		}
	}
	out += "}"
	return out
}

func sortedActions(p *planner.Planner) []*planner.Action {
	actions := make([]*planner.Action, len(p.AllActions))
	copy(actions, p.AllActions)
	sort.Slice(actions, func(i, j int) bool { return actions[i].Number < actions[j].Number })
	return actions
}

func depNames(a *planner.Action) []string {
	names := make([]string, 0, len(a.Depends))
	for dep := range a.Depends {
		names = append(names, dep.Trail)
	}
	sort.Strings(names)
	return names
}
