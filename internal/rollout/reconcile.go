// Package rollout creates or updates the ECS service and watches the new
// task definition revision reach steady state.
package rollout

import (
	"context"
	"fmt"
	"log/slog"

	"slipway/internal/provision"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

// ECSServiceAPI is the slice of the ECS client the reconciler needs.
type ECSServiceAPI interface {
	DescribeServices(ctx context.Context, in *ecs.DescribeServicesInput, opts ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
	CreateService(ctx context.Context, in *ecs.CreateServiceInput, opts ...func(*ecs.Options)) (*ecs.CreateServiceOutput, error)
	UpdateService(ctx context.Context, in *ecs.UpdateServiceInput, opts ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error)
}

// Outcome says what the reconciler did to the service.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// ReconcileInput binds a service to a cluster, a task definition revision,
// and a network placement.
type ReconcileInput struct {
	Cluster           string
	Service           string
	TaskDefinitionArn string
	Placement         provision.Placement
}

// Reconciler ensures the service exists and runs the given revision.
type Reconciler struct {
	Client ECSServiceAPI
}

// Reconcile creates the service when absent, or force-updates it to the new
// revision when ACTIVE. The update always forces a fresh deployment, even
// when the definition content is unchanged, so every deploy restarts tasks
// with the freshest image for the tag. A service in any other state (DRAINING,
// INACTIVE) is a fatal precondition — it is never resurrected here.
func (r Reconciler) Reconcile(ctx context.Context, in ReconcileInput) (Outcome, error) {
	svc, found, err := lookupService(ctx, r.Client, in.Cluster, in.Service)
	if err != nil {
		return "", err
	}

	if !found {
		_, err := r.Client.CreateService(ctx, &ecs.CreateServiceInput{
			Cluster:              aws.String(in.Cluster),
			ServiceName:          aws.String(in.Service),
			TaskDefinition:       aws.String(in.TaskDefinitionArn),
			DesiredCount:         aws.Int32(1),
			LaunchType:           ecstypes.LaunchTypeFargate,
			NetworkConfiguration: networkConfiguration(in.Placement),
		})
		if err != nil {
			return "", fmt.Errorf("create service %q: %w", in.Service, err)
		}
		slog.Info("created service", "cluster", in.Cluster, "service", in.Service)
		return OutcomeCreated, nil
	}

	if status := aws.ToString(svc.Status); status != "ACTIVE" {
		return "", &provision.PreconditionError{
			Resource: "service " + in.Service,
			Reason:   "status is " + status + ", expected ACTIVE; delete the service or wait for it to settle",
		}
	}

	_, err = r.Client.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:            aws.String(in.Cluster),
		Service:            aws.String(in.Service),
		TaskDefinition:     aws.String(in.TaskDefinitionArn),
		ForceNewDeployment: true,
	})
	if err != nil {
		return "", fmt.Errorf("update service %q: %w", in.Service, err)
	}
	slog.Info("updated service", "cluster", in.Cluster, "service", in.Service, "taskdef", in.TaskDefinitionArn)
	return OutcomeUpdated, nil
}

// lookupService describes one service. ECS reports absence through the
// Failures list (reason MISSING), not an error.
func lookupService(ctx context.Context, client interface {
	DescribeServices(ctx context.Context, in *ecs.DescribeServicesInput, opts ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
}, cluster, service string) (*ecstypes.Service, bool, error) {
	out, err := client.DescribeServices(ctx, &ecs.DescribeServicesInput{
		Cluster:  aws.String(cluster),
		Services: []string{service},
	})
	if err != nil {
		return nil, false, fmt.Errorf("describe service %q: %w", service, err)
	}
	for i := range out.Services {
		if aws.ToString(out.Services[i].ServiceName) == service {
			return &out.Services[i], true, nil
		}
	}
	return nil, false, nil
}

func networkConfiguration(p provision.Placement) *ecstypes.NetworkConfiguration {
	assign := ecstypes.AssignPublicIpDisabled
	if p.AssignPublicIP {
		assign = ecstypes.AssignPublicIpEnabled
	}
	return &ecstypes.NetworkConfiguration{
		AwsvpcConfiguration: &ecstypes.AwsVpcConfiguration{
			Subnets:        p.SubnetIDs,
			SecurityGroups: []string{p.SecurityGroupID},
			AssignPublicIp: assign,
		},
	}
}
