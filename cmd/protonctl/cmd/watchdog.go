package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/config"
	"github.com/vpntools/protonctl/internal/logging"
	"github.com/vpntools/protonctl/internal/paths"
	"github.com/vpntools/protonctl/internal/sssd"
	"github.com/vpntools/protonctl/internal/vpn"
)

var (
	watchdogDomain     string
	watchdogSSSDDomain string
	watchdogLogFile    string
)

var watchdogCmd = &cobra.Command{
	Use:   "watchdog",
	Short: "Run one connectivity watchdog pass",
	Long: `Run a single watchdog pass: resolve the monitored domain and, when an
SSSD domain is configured, check its reported online status. If either
check fails, the managed OpenVPN client is terminated.

This command is normally invoked by the systemd timer installed during
'protonctl setup --watchdog-domain <domain>'.`,
	Run: func(cmd *cobra.Command, args []string) {
		// Timer-driven passes log to a file so failures survive the
		// short-lived unit.
		if watchdogLogFile != "" {
			if err := logging.SetupFile(logging.ParseLevel(logLevel), watchdogLogFile); err != nil {
				fmt.Fprintf(os.Stderr, "cannot open log file %s: %v\n", watchdogLogFile, err)
				os.Exit(1)
			}
		}

		cfg, err := config.Load()
		if err != nil {
			logging.Warn("failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}

		domain := watchdogDomain
		if domain == "" {
			domain = cfg.Watchdog.Domain
		}
		sssdDomain := watchdogSSSDDomain
		if sssdDomain == "" {
			sssdDomain = cfg.SSSD.Domain
		}

		w := vpn.NewWatchdog(systemResolver(), sssd.NewClient(), paths.VPNPIDFile())
		w.Domain = domain
		w.SSSDDomain = sssdDomain
		w.Probe = cfg.Watchdog.Probe
		w.ProbePort = cfg.Watchdog.ProbePort

		result, err := w.Run(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		if result.Healthy() {
			fmt.Printf("%s is reachable\n", domain)
			return
		}
		if result.Terminated {
			fmt.Println("connectivity lost, VPN client terminated")
		} else {
			fmt.Println("connectivity lost, no VPN client running")
		}
	},
}

func init() {
	watchdogCmd.Flags().StringVar(&watchdogDomain, "domain", "", "Domain whose resolvability is required (overrides config)")
	watchdogCmd.Flags().StringVar(&watchdogSSSDDomain, "sssd-domain", "", "SSSD domain checked for an explicit offline report (overrides config)")
	watchdogCmd.Flags().StringVar(&watchdogLogFile, "log-file", "", "Append logs to this file instead of stderr")
	rootCmd.AddCommand(watchdogCmd)
}
