package cmd

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vpntools/protonctl/internal/config"
	"github.com/vpntools/protonctl/internal/creds"
	"github.com/vpntools/protonctl/internal/paths"
	"github.com/vpntools/protonctl/internal/privilege"
	"github.com/vpntools/protonctl/internal/service"
)

var (
	setupForceFlag      bool
	setupWatchdogDomain string
	setupBypassDomains  string
	setupSkipDesktop    bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Configure the system for protonctl",
	Long: `Setup configures your system for protonctl by:

  1. Verifying that the OpenVPN client is installed
  2. Persisting the bypass-domain list and watchdog domain
  3. Storing your ProtonVPN OpenVPN credentials
  4. Installing the watchdog systemd timer (requires sudo)
  5. Installing desktop shortcuts for connect/disconnect

Installing the watchdog timer writes system units and requires
administrator privileges.`,
	Run: runSetup,
}

func init() {
	setupCmd.Flags().BoolVar(&setupForceFlag, "force", false, "Overwrite existing shortcuts and stored credentials")
	setupCmd.Flags().StringVar(&setupWatchdogDomain, "watchdog-domain", "", "Enable the connectivity watchdog for this domain")
	setupCmd.Flags().StringVar(&setupBypassDomains, "bypass-domains", "", "Comma-separated bypass-domain list to persist")
	setupCmd.Flags().BoolVar(&setupSkipDesktop, "skip-desktop", false, "Skip desktop shortcut installation")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	fmt.Println("Setting up protonctl...")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		cfg = config.Default()
	}

	// Step 1: OpenVPN client must be present; everything else is
	// pointless without it.
	fmt.Print("1. Checking OpenVPN client... ")
	if _, err := exec.LookPath(cfg.Connection.OpenVPNPath); err != nil {
		fmt.Println("missing")
		fmt.Fprintf(os.Stderr, "   %s not found; install the openvpn package first\n", cfg.Connection.OpenVPNPath)
		os.Exit(1)
	}
	fmt.Println("found")

	// Step 2: persist settings, touching only the keys that changed.
	fmt.Print("2. Updating configuration... ")
	if setupBypassDomains != "" {
		domains := config.SplitDomains(setupBypassDomains)
		if err := config.SetBypassDomains(paths.ConfigFile(), domains); err != nil {
			fmt.Println("failed")
			fmt.Fprintf(os.Stderr, "   %v\n", err)
			os.Exit(1)
		}
		cfg.BypassDomains = domains
	}
	if setupWatchdogDomain != "" {
		cfg.Watchdog.Domain = setupWatchdogDomain
		if err := cfg.Save(); err != nil {
			fmt.Println("failed")
			fmt.Fprintf(os.Stderr, "   %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println("done")

	// Step 3: credentials.
	fmt.Print("3. Checking credentials... ")
	if creds.Exists() && !setupForceFlag {
		fmt.Println("already stored")
	} else {
		fmt.Println("prompting")
		c, err := promptCredentials()
		if err != nil {
			fmt.Fprintf(os.Stderr, "   failed to read credentials: %v\n", err)
			os.Exit(1)
		}
		if err := creds.Store(c); err != nil {
			fmt.Fprintf(os.Stderr, "   failed to store credentials: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("   credentials stored")
	}

	// Step 4: watchdog units.
	if setupWatchdogDomain != "" {
		fmt.Print("4. Installing watchdog timer... ")
		if service.IsInstalled() && !setupForceFlag {
			fmt.Println("already installed")
		} else if !privilege.IsRoot() {
			fmt.Println("skipped (requires sudo)")
			fmt.Fprintf(os.Stderr, "   Run: sudo protonctl setup --watchdog-domain %s\n", setupWatchdogDomain)
		} else {
			err := service.Install(service.Config{
				Domain:     setupWatchdogDomain,
				SSSDDomain: cfg.SSSD.Domain,
				Interval:   cfg.Watchdog.Interval,
			})
			if err != nil {
				fmt.Println("failed")
				fmt.Fprintf(os.Stderr, "   %v\n", err)
				os.Exit(1)
			}
			fmt.Println("installed")
		}
	}

	// Step 5: desktop shortcuts, best effort.
	if !setupSkipDesktop {
		fmt.Print("5. Installing desktop shortcuts... ")
		if err := installDesktopEntries(); err != nil {
			fmt.Println("failed")
			fmt.Fprintf(os.Stderr, "   %v (continuing)\n", err)
		} else {
			fmt.Println("done")
		}
	}

	fmt.Println()
	fmt.Println("Setup complete! Connect with: protonctl connect")
}

func promptCredentials() (creds.Credentials, error) {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("   ProtonVPN OpenVPN username: ")
	username, err := reader.ReadString('\n')
	if err != nil {
		return creds.Credentials{}, err
	}
	username = strings.TrimSpace(username)

	fmt.Print("   ProtonVPN OpenVPN password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return creds.Credentials{}, err
	}

	return creds.Credentials{
		Username: username,
		Password: strings.TrimSpace(string(password)),
	}, nil
}

func installDesktopEntries() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	dir := filepath.Join(home, ".local", "share", "applications")
	return service.InstallDesktopEntries(exe, dir, setupForceFlag)
}
