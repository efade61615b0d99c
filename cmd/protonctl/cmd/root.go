// Package cmd provides the CLI commands for protonctl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vpntools/protonctl/internal/logging"
)

// Build-time variables set via ldflags.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "protonctl",
	Short: "ProtonVPN OpenVPN client helper for desktop Linux",
	Long: `protonctl connects a desktop Linux machine to ProtonVPN over OpenVPN:

  - Connects using the newest downloaded .ovpn profile
  - Injects bypass routes so local-network and auth traffic avoids the tunnel
  - Verifies the connection by watching the OpenVPN log
  - Runs a periodic watchdog that disconnects when critical domains
    become unreachable

Start by running 'protonctl setup' to configure your system,
then 'protonctl connect' to bring the tunnel up.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Setup(logging.ParseLevel(logLevel), os.Stderr)
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("protonctl version {{.Version}}\ncommit: %s\nbuilt: %s\n", Commit, BuildDate))
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
