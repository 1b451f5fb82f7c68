package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string
)

var (
	configPath        string
	workspaceOverride string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "waggle",
	Short: "Waggle - real-time collaboration core for shared task boards",
	Long: `Waggle is the real-time collaboration and optimistic synchronization
core of a shared weekly task board.

It broadcasts ephemeral presence (pointer positions, editing intent) over a
workspace-scoped Redis channel, keeps the ordered task layout in sync across
sessions with optimistic local-first writes, and rolls the board forward to
the next week on a client-side schedule, exactly once per week.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	// printer.Error already renders failures to stderr; keep cobra quiet
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "waggle.yml", "Path to the waggle.yml configuration file")
	rootCmd.PersistentFlags().StringVar(&workspaceOverride, "workspace", "", "Workspace name (overrides the configured one)")
}
