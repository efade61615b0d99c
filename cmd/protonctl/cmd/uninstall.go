package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/privilege"
	"github.com/vpntools/protonctl/internal/service"
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove installed artifacts",
	Long: `Remove the watchdog systemd units and the desktop shortcuts.

Configuration and stored credentials are left in place.`,
	Run: func(cmd *cobra.Command, args []string) {
		if service.IsInstalled() {
			if !privilege.IsRoot() {
				fmt.Fprintln(os.Stderr, "removing the watchdog timer requires sudo")
				os.Exit(1)
			}
			if err := service.Uninstall(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove watchdog units: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("watchdog timer removed")
		}

		home, err := os.UserHomeDir()
		if err == nil {
			dir := filepath.Join(home, ".local", "share", "applications")
			if err := service.RemoveDesktopEntries(dir); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove desktop shortcuts: %v\n", err)
				os.Exit(1)
			}
		}

		fmt.Println("uninstall complete")
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
}
