// Package cmdutil holds wiring shared by the slipway subcommands: resolving
// the target environment from config plus flag overrides, and constructing
// the AWS service clients for its region.
package cmdutil

import (
	"context"
	"fmt"

	"slipway/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Target is a fully resolved deployment target: the named environment with
// all defaults applied.
type Target struct {
	Name          string
	Region        string
	Project       string
	Cluster       string
	Service       string
	LocalImage    string
	ContainerPort int32
	Protocol      string
}

// Overrides are the flag values a subcommand may use to override config.
type Overrides struct {
	Region  string
	Cluster string
	Service string
	Image   string
	Port    string
}

// ResolveTarget loads the config file, resolves the named environment
// (or the current selection when envName is empty) and applies overrides.
func ResolveTarget(envName string, ov Overrides) (Target, error) {
	cfg, err := config.Load()
	if err != nil {
		return Target{}, err
	}

	name, env, err := cfg.Resolve(envName)
	if err != nil {
		return Target{}, err
	}

	if ov.Region != "" {
		env.Region = ov.Region
	}
	if ov.Cluster != "" {
		env.Cluster = ov.Cluster
	}
	if ov.Service != "" {
		env.Service = ov.Service
	}
	if ov.Image != "" {
		env.Image = ov.Image
	}
	if ov.Port != "" {
		env.Port = ov.Port
	}

	port, proto, err := env.ContainerPort()
	if err != nil {
		return Target{}, err
	}

	return Target{
		Name:          name,
		Region:        env.Region,
		Project:       env.Project,
		Cluster:       env.ClusterName(name),
		Service:       env.ServiceName(name),
		LocalImage:    env.LocalImage(),
		ContainerPort: port,
		Protocol:      proto,
	}, nil
}

// Clients bundles the AWS service clients a deployment touches.
type Clients struct {
	ECR  *ecr.Client
	ECS  *ecs.Client
	IAM  *iam.Client
	EC2  *ec2.Client
	STS  *sts.Client
	Logs *cloudwatchlogs.Client
}

// NewClients builds the AWS client bundle for a region using the default
// credential chain (env vars, shared config, instance metadata).
func NewClients(ctx context.Context, region string) (Clients, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return Clients{}, fmt.Errorf("load aws config: %w", err)
	}
	return newClients(cfg), nil
}

func newClients(cfg aws.Config) Clients {
	return Clients{
		ECR:  ecr.NewFromConfig(cfg),
		ECS:  ecs.NewFromConfig(cfg),
		IAM:  iam.NewFromConfig(cfg),
		EC2:  ec2.NewFromConfig(cfg),
		STS:  sts.NewFromConfig(cfg),
		Logs: cloudwatchlogs.NewFromConfig(cfg),
	}
}
