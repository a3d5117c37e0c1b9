package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/smx/internal/hosts"
)

var hostsConfigPath string

func init() {
	rootCmd.AddCommand(hostsCmd)

	hostsCmd.Flags().StringVar(&hostsConfigPath, "hosts-config", "hosts.yml", "Hosts config file")
}

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "Check extraction host availability and capacity",
	Long: `Connect to each configured extraction host over SSH and report core
counts, load, and whether the corpus is mounted. Useful before pointing
a large run at a shared machine.

Requires a running SSH agent with keys loaded.`,
	RunE: runHosts,
}

func runHosts(cmd *cobra.Command, args []string) error {
	cfg, err := hosts.LoadConfig(hostsConfigPath)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	list, err := hosts.ExpandHosts(cfg)
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	client, err := hosts.NewSSHClient(cfg.SSH)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer client.Close()

	report := hosts.CheckAllHosts(client, list)

	if humanOutput {
		outputHuman("%s", hosts.FormatTable(report))
	} else {
		outputJSON(report)
	}
	return nil
}
