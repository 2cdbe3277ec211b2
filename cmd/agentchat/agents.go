package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/hupe1980/agentchat/registry"
	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agents of the configured registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := registry.LoadFile(cfg.AgentsFile)
		if err != nil {
			return err
		}
		return printAgents(cmd, reg)
	},
}

func printAgents(cmd *cobra.Command, reg *registry.Registry) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTITLE\tMENTIONABLE\tROLE")
	for _, d := range reg.All() {
		role := "-"
		if d.IsDefaultCoordinator {
			role = "coordinator"
		}
		fmt.Fprintf(w, "@%s\t%s\t%s\t%t\t%s\n", d.ID, d.Name(), d.Title, d.Mentionable, role)
	}
	return w.Flush()
}
