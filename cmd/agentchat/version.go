package main

import (
	"fmt"

	"github.com/hupe1980/agentchat"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "agentchat version %s\n", agentchat.Version)
	},
}
