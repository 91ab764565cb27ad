package configurecmd

import (
	"fmt"

	"slipway/cmd/slipway/ui"
	"slipway/config"

	"github.com/spf13/cobra"
)

func setCmd() *cobra.Command {
	var (
		region  string
		project string
		cluster string
		service string
		image   string
		port    string
	)

	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Add or update an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			name := args[0]

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			env := cfg.Environments[name]
			if region != "" {
				env.Region = region
			}
			if project != "" {
				env.Project = project
			}
			if cluster != "" {
				env.Cluster = cluster
			}
			if service != "" {
				env.Service = service
			}
			if image != "" {
				env.Image = image
			}
			if port != "" {
				env.Port = port
			}

			if env.Region == "" || env.Project == "" {
				return fmt.Errorf("--region and --project are required for a new environment")
			}

			cfg.Set(name, env)
			if cfg.CurrentEnvironment == "" {
				cfg.CurrentEnvironment = name
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Println(ui.SuccessMsg("Environment %s saved.", ui.Bold(name)))
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "AWS region (e.g. us-east-1)")
	cmd.Flags().StringVar(&project, "project", "", "Project name; resource names derive from it")
	cmd.Flags().StringVar(&cluster, "cluster", "", "Cluster name override")
	cmd.Flags().StringVar(&service, "service", "", "Service name override")
	cmd.Flags().StringVar(&image, "image", "", "Local image name override")
	cmd.Flags().StringVar(&port, "port", "", "Container port spec, e.g. 8080 or 8080/tcp")
	return cmd
}
