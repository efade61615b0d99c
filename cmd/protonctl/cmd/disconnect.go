package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/config"
	"github.com/vpntools/protonctl/internal/notify"
	"github.com/vpntools/protonctl/internal/paths"
	"github.com/vpntools/protonctl/internal/vpn"
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect from ProtonVPN",
	Long: `Stop the managed OpenVPN client.

The client is interrupted gracefully first; any survivor is killed after
a short grace period.`,
	Run: func(cmd *cobra.Command, args []string) {
		process := vpn.NewProcess(paths.VPNPIDFile())

		err := process.Stop(5 * time.Second)
		if errors.Is(err, vpn.ErrNotRunning) {
			fmt.Println("VPN client is not running")
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to stop VPN client: %v\n", err)
			os.Exit(1)
		}

		if cfg, cfgErr := config.Load(); cfgErr == nil {
			notify.New(cfg.Notifications).Disconnected()
		}
		fmt.Println("disconnected")
	},
}

func init() {
	rootCmd.AddCommand(disconnectCmd)
}
