// Package statuscmd implements "slipway status": a one-shot snapshot of the
// target service's rollout state.
package statuscmd

import (
	"fmt"
	"strconv"
	"strings"

	"slipway/cmd/slipway/cmdutil"
	"slipway/cmd/slipway/ui"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
	"github.com/spf13/cobra"
)

// Cmd returns the "slipway status" command.
func Cmd() *cobra.Command {
	var (
		envName     string
		region      string
		clusterName string
		serviceName string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the deployed service's rollout state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := cmdutil.ResolveTarget(envName, cmdutil.Overrides{
				Region:  region,
				Cluster: clusterName,
				Service: serviceName,
			})
			if err != nil {
				return err
			}

			clients, err := cmdutil.NewClients(cmd.Context(), target.Region)
			if err != nil {
				return err
			}

			out, err := clients.ECS.DescribeServices(cmd.Context(), &ecs.DescribeServicesInput{
				Cluster:  aws.String(target.Cluster),
				Services: []string{target.Service},
			})
			if err != nil {
				return fmt.Errorf("describe service: %w", err)
			}
			if len(out.Services) == 0 {
				fmt.Println(ui.InfoMsg("service %s not found in cluster %s — run %s first",
					ui.Accent(target.Service), ui.Accent(target.Cluster), ui.Bold("slipway deploy")))
				return nil
			}

			svc := out.Services[0]
			fmt.Println(ui.InfoMsg("service %s in %s (%s)",
				ui.Accent(target.Service), ui.Accent(target.Name), target.Region))
			fmt.Print(ui.KeyValues("  ",
				ui.KV("status", aws.ToString(svc.Status)),
				ui.KV("desired", strconv.Itoa(int(svc.DesiredCount))),
				ui.KV("running", strconv.Itoa(int(svc.RunningCount))),
				ui.KV("pending", strconv.Itoa(int(svc.PendingCount))),
				ui.KV("task definition", aws.ToString(svc.TaskDefinition)),
				ui.KV("deployments", describeDeployments(svc.Deployments)),
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name (defaults to current-environment)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region override")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Cluster name override")
	cmd.Flags().StringVar(&serviceName, "service", "", "Service name override")
	return cmd
}

func describeDeployments(deployments []ecstypes.Deployment) string {
	if len(deployments) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(deployments))
	for _, d := range deployments {
		parts = append(parts, fmt.Sprintf("%s %d/%d",
			strings.ToLower(aws.ToString(d.Status)), d.RunningCount, d.DesiredCount))
	}
	return strings.Join(parts, ", ")
}
