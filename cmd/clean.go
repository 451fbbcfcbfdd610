package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bub-build/bub/internal/msg"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "remove every built output (obj, priv, dist, tmp) and the dependency cache",
	Args:  noArgs,
	RunE:  runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	for _, sub := range []string{"obj", "priv", "dist", "tmp"} {
		path := filepath.Join(flagDir, sub)
		if err := os.RemoveAll(path); err != nil {
			return err
		}
	}
	if err := os.Remove(filepath.Join(flagDir, "dependency-cache")); err != nil && !os.IsNotExist(err) {
		return err
	}
	msg.Info("cleaned %s", flagDir)
	return nil
}
