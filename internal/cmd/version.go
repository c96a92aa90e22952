package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/feedbackd/feedbackd/internal/server/handlers"
)

var extended bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for Go, Gofulmen and Crucible versions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), extended)
	},
}

func writeVersion(w io.Writer, extended bool) error {
	info := handlers.CurrentVersion()
	if _, err := fmt.Fprintf(w, "%s %s\n", info.App.Name, info.App.Version); err != nil {
		return err
	}
	if !extended {
		return nil
	}
	_, err := fmt.Fprintf(w, "Commit: %s\nBuilt: %s\nGo: %s\nPlatform: %s\n\nGofulmen: %s\nCrucible: %s\n",
		info.App.Commit, info.App.BuildDate, info.App.GoVersion, info.Runtime.Platform,
		info.Dependencies.Gofulmen, info.Dependencies.Crucible)
	return err
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
