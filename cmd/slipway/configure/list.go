package configurecmd

import (
	"fmt"
	"sort"

	"slipway/cmd/slipway/ui"
	"slipway/config"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured environments",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			if len(cfg.Environments) == 0 {
				fmt.Println(ui.InfoMsg("No environments configured. Add one with %s.",
					ui.Bold("slipway configure set")))
				return nil
			}

			names := make([]string, 0, len(cfg.Environments))
			for name := range cfg.Environments {
				names = append(names, name)
			}
			sort.Strings(names)

			var rows [][]string
			for _, name := range names {
				env := cfg.Environments[name]

				current := ""
				if name == cfg.CurrentEnvironment {
					current = "*"
				}

				rows = append(rows, []string{
					current, name, env.Region, env.Project,
					env.ClusterName(name), env.ServiceName(name),
				})
			}

			fmt.Println(ui.Table([]string{"", "NAME", "REGION", "PROJECT", "CLUSTER", "SERVICE"}, rows))
			return nil
		},
	}
}
