package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/config"
	"github.com/vpntools/protonctl/internal/creds"
	"github.com/vpntools/protonctl/internal/logging"
	"github.com/vpntools/protonctl/internal/notify"
	"github.com/vpntools/protonctl/internal/paths"
	"github.com/vpntools/protonctl/internal/privilege"
	"github.com/vpntools/protonctl/internal/profile"
	"github.com/vpntools/protonctl/internal/resolver"
	"github.com/vpntools/protonctl/internal/sssd"
	"github.com/vpntools/protonctl/internal/vpn"
)

var (
	connectProfile  string
	connectBypass   string
	connectSkipSSSD bool
)

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "Connect to ProtonVPN",
	Long: `Connect to ProtonVPN using the newest downloaded .ovpn profile.

Before the tunnel comes up, all configured bypass domains and any
SSSD-discovered domain controllers are resolved, and host routes via the
local gateway are appended to a working copy of the profile. The original
profile is never modified.

The connection is verified by polling the OpenVPN log; the command exits
non-zero on authentication failure, TLS failure, or timeout.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runConnect(cmd.Context()); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	connectCmd.Flags().StringVar(&connectProfile, "profile", "", "OpenVPN profile to use (default: newest .ovpn in the profile directory)")
	connectCmd.Flags().StringVar(&connectBypass, "bypass-domains", "", "Comma-separated domains to route outside the tunnel (overrides config)")
	connectCmd.Flags().BoolVar(&connectSkipSSSD, "skip-sssd", false, "Skip SSSD domain-controller discovery")
	rootCmd.AddCommand(connectCmd)
}

func runConnect(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// The client launch is pkexec-wrapped; on systems without pkexec the
	// whole command re-executes under sudo instead, before any work is
	// done that would have to be repeated.
	if needsSudoFallback(privilege.IsRoot(), exec.LookPath) {
		if err := privilege.RequireRoot("launching the OpenVPN client (pkexec is not available)"); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to prepare data directories: %w", err)
	}

	bypass := cfg.BypassDomains
	if connectBypass != "" {
		bypass = config.SplitDomains(connectBypass)
	}

	src := connectProfile
	if src == "" {
		src, err = profile.FindNewest(cfg.EffectiveProfileDir())
		if err != nil {
			return err
		}
	}
	profileName := filepath.Base(src)

	credentials, err := creds.Load()
	if err != nil {
		return fmt.Errorf("no stored credentials: %w (run 'protonctl setup' first)", err)
	}

	// Routes must be fully resolved before the client starts: once the
	// tunnel overrides the default route, late additions would not
	// reliably bypass it.
	builder := &profile.RouteBuilder{
		Resolver: systemResolver(),
		Provider: sssd.NewClient(),
	}
	routes := builder.Build(ctx, profile.Options{
		BypassDomains: bypass,
		SSSDDomain:    cfg.SSSD.Domain,
		SkipSSSD:      connectSkipSSSD || !cfg.SSSD.Enabled,
	})
	logging.Info("bypass routes computed", "count", len(routes))

	annotated, err := profile.Annotate(src, paths.ScratchDir(), routes)
	if err != nil {
		return err
	}
	defer os.Remove(annotated)

	authFile, err := creds.WriteTransient(credentials, paths.ScratchDir())
	if err != nil {
		return err
	}
	defer os.Remove(authFile)

	notifier := notify.New(cfg.Notifications)
	notifier.Connecting(profileName)

	orch := vpn.NewOrchestrator(
		cfg.Connection.OpenVPNPath,
		paths.VPNLogFile(),
		paths.VPNPIDFile(),
		paths.LockFile(),
		cfg.Connection.PollAttempts,
		cfg.PollInterval(),
	)

	state, err := orch.Connect(ctx, annotated, authFile)
	if err != nil {
		notifier.Failed(err.Error(), paths.VPNLogFile())
		return err
	}

	switch state {
	case vpn.StateConnected:
		notifier.Connected(profileName)
		fmt.Printf("connected using %s\n", profileName)
		return nil
	case vpn.StateFailed:
		notifier.Failed("Authentication or TLS negotiation failed.", paths.VPNLogFile())
		return fmt.Errorf("connection failed, see %s", paths.VPNLogFile())
	default:
		notifier.TimedOut(paths.VPNLogFile())
		return fmt.Errorf("connection timed out, see %s", paths.VPNLogFile())
	}
}

// needsSudoFallback reports whether connect must re-exec itself under
// sudo: without root privileges and without pkexec there is no other way
// to start the OpenVPN client.
func needsSudoFallback(isRoot bool, lookPath func(string) (string, error)) bool {
	if isRoot {
		return false
	}
	_, err := lookPath("pkexec")
	return err != nil
}

// systemResolver returns the system DNS resolver, or nil (degrading to no
// bypass routes) when none is configured.
func systemResolver() resolver.Resolver {
	r, err := resolver.NewSystem()
	if err != nil {
		logging.Warn("system DNS resolver unavailable", "error", err)
		return nil
	}
	return r
}
