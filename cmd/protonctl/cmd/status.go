package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/config"
	"github.com/vpntools/protonctl/internal/paths"
	"github.com/vpntools/protonctl/internal/service"
	"github.com/vpntools/protonctl/internal/vpn"
)

var statusJSONOutput bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show VPN client status",
	Long: `Display the current status of the managed OpenVPN client including:

  - Whether the client is running and its PID
  - The log and PID file locations
  - The configured bypass domains and watchdog`,
	Run: func(cmd *cobra.Command, args []string) {
		status := getStatus()

		if statusJSONOutput {
			outputStatusJSON(status)
		} else {
			outputStatusText(status)
		}
	},
}

// Status represents the current state of the managed client.
type Status struct {
	Running           bool     `json:"running"`
	PID               int      `json:"pid,omitempty"`
	LogFile           string   `json:"log_file"`
	PIDFile           string   `json:"pid_file"`
	BypassDomains     []string `json:"bypass_domains"`
	WatchdogDomain    string   `json:"watchdog_domain,omitempty"`
	WatchdogInstalled bool     `json:"watchdog_installed"`
}

func getStatus() Status {
	process := vpn.NewProcess(paths.VPNPIDFile())

	status := Status{
		Running:           process.IsRunning(),
		LogFile:           paths.VPNLogFile(),
		PIDFile:           paths.VPNPIDFile(),
		BypassDomains:     []string{},
		WatchdogInstalled: service.IsInstalled(),
	}

	if status.Running {
		pid, _ := process.PID()
		status.PID = pid
	}

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}
	status.BypassDomains = cfg.BypassDomains
	status.WatchdogDomain = cfg.Watchdog.Domain

	return status
}

func outputStatusText(status Status) {
	if status.Running {
		fmt.Printf("VPN client is running (pid %d)\n", status.PID)
	} else {
		fmt.Println("VPN client is not running")
	}

	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "  log file\t%s\n", status.LogFile)
	fmt.Fprintf(w, "  pid file\t%s\n", status.PIDFile)
	if len(status.BypassDomains) > 0 {
		fmt.Fprintf(w, "  bypass domains\t%s\n", strings.Join(status.BypassDomains, ", "))
	} else {
		fmt.Fprintf(w, "  bypass domains\tnone\n")
	}
	if status.WatchdogDomain != "" {
		installed := "not installed"
		if status.WatchdogInstalled {
			installed = "installed"
		}
		fmt.Fprintf(w, "  watchdog\t%s (%s)\n", status.WatchdogDomain, installed)
	} else {
		fmt.Fprintf(w, "  watchdog\tdisabled\n")
	}
	w.Flush()
}

func outputStatusJSON(status Status) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(status)
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSONOutput, "json", false, "Output in JSON format")
	rootCmd.AddCommand(statusCmd)
}
