package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vpntools/protonctl/internal/config"
	"github.com/vpntools/protonctl/internal/paths"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and edit protonctl configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration file contents.`,
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(paths.ConfigFile())
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf("no configuration at %s\n", paths.ConfigFile())
				return
			}
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
	},
}

var configSetDomainsCmd = &cobra.Command{
	Use:   "set-domains <domain,...>",
	Short: "Set the bypass-domain list",
	Long: `Persist a new bypass-domain list. All other configuration keys are
left untouched.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		domains := config.SplitDomains(args[0])
		if len(domains) == 0 {
			fmt.Fprintln(os.Stderr, "no domains given")
			os.Exit(1)
		}
		if err := config.SetBypassDomains(paths.ConfigFile(), domains); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("bypass domains set to %s\n", strings.Join(domains, ", "))
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetDomainsCmd)
	rootCmd.AddCommand(configCmd)
}
