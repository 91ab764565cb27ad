package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
)

// ECSClusterAPI is the slice of the ECS client the cluster provisioner needs.
type ECSClusterAPI interface {
	DescribeClusters(ctx context.Context, in *ecs.DescribeClustersInput, opts ...func(*ecs.Options)) (*ecs.DescribeClustersOutput, error)
	CreateCluster(ctx context.Context, in *ecs.CreateClusterInput, opts ...func(*ecs.Options)) (*ecs.CreateClusterOutput, error)
}

// Cluster ensures an ECS cluster exists and is ACTIVE.
type Cluster struct {
	Client ECSClusterAPI
}

// Ensure returns the cluster ARN for name, creating the cluster when absent.
// A cluster that exists but is not ACTIVE (e.g. mid-delete, INACTIVE) is
// treated as absent: CreateCluster on an existing name is itself idempotent
// on the ECS side and reactivates INACTIVE clusters.
func (c Cluster) Ensure(ctx context.Context, name string) (string, error) {
	out, err := c.Client.DescribeClusters(ctx, &ecs.DescribeClustersInput{
		Clusters: []string{name},
	})
	if err != nil {
		return "", fmt.Errorf("describe cluster %q: %w", name, err)
	}
	for _, cl := range out.Clusters {
		if aws.ToString(cl.ClusterName) == name && aws.ToString(cl.Status) == "ACTIVE" {
			slog.Debug("cluster exists", "name", name)
			return aws.ToString(cl.ClusterArn), nil
		}
	}

	created, err := c.Client.CreateCluster(ctx, &ecs.CreateClusterInput{
		ClusterName: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("create cluster %q: %w", name, err)
	}
	slog.Info("created cluster", "name", name)
	return aws.ToString(created.Cluster.ClusterArn), nil
}
