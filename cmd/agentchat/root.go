package main

import (
	"os"

	"github.com/hupe1980/agentchat/config"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentchat",
	Short: "Mention-driven multi-agent team chat",
	Long: `agentchat puts you in a conversation with a team of AI agents.

Agents reply when you @-mention them. Beyond that, at most one teammate may
join in on its own per message, and the coordinator greets and routes.

With no arguments, starts an interactive chat.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./agentchat.yaml or $XDG_CONFIG_HOME/agentchat/config.yaml)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(versionCmd)
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
