// Package taskdef registers ECS task definition revisions. Revisions are
// immutable: every deploy registers a new one carrying the previous shape
// forward with only the container image replaced.
package taskdef

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	logstypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

const (
	defaultCPU    = "256"
	defaultMemory = "512"
)

// ECSTaskDefAPI is the slice of the ECS client the registrar needs.
type ECSTaskDefAPI interface {
	DescribeTaskDefinition(ctx context.Context, in *ecs.DescribeTaskDefinitionInput, opts ...func(*ecs.Options)) (*ecs.DescribeTaskDefinitionOutput, error)
	RegisterTaskDefinition(ctx context.Context, in *ecs.RegisterTaskDefinitionInput, opts ...func(*ecs.Options)) (*ecs.RegisterTaskDefinitionOutput, error)
}

// LogsAPI creates the awslogs log group a fresh task definition points at.
type LogsAPI interface {
	CreateLogGroup(ctx context.Context, in *cloudwatchlogs.CreateLogGroupInput, opts ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogGroupOutput, error)
}

// Input is everything needed to register a revision.
type Input struct {
	Family           string
	Image            string
	ExecutionRoleArn string
	ContainerPort    int32
	Protocol         string
	Region           string
}

// Spec identifies a registered task definition revision.
type Spec struct {
	Arn      string
	Family   string
	Revision int32
}

// Registrar registers task definition revisions for a family.
type Registrar struct {
	ECS  ECSTaskDefAPI
	Logs LogsAPI
}

// LogGroupName derives the deterministic awslogs group for a family.
func LogGroupName(family string) string {
	return "/ecs/" + family
}

// Register creates a new revision: the previous definition with images
// swapped to in.Image, or Fargate defaults when the family has never been
// registered. Never mutates a prior revision.
func (r Registrar) Register(ctx context.Context, in Input) (Spec, error) {
	prev, err := r.latest(ctx, in.Family)
	if err != nil {
		return Spec{}, err
	}

	var req *ecs.RegisterTaskDefinitionInput
	if prev != nil {
		req = carryForward(prev, in.Image)
	} else {
		if err := r.ensureLogGroup(ctx, in.Family); err != nil {
			return Spec{}, err
		}
		req = freshDefinition(in)
	}

	out, err := r.ECS.RegisterTaskDefinition(ctx, req)
	if err != nil {
		return Spec{}, fmt.Errorf("register task definition %q: %w", in.Family, err)
	}
	td := out.TaskDefinition
	spec := Spec{
		Arn:      aws.ToString(td.TaskDefinitionArn),
		Family:   aws.ToString(td.Family),
		Revision: td.Revision,
	}
	slog.Info("registered task definition", "family", spec.Family, "revision", spec.Revision)
	return spec, nil
}

// latest returns the newest ACTIVE definition for family, or nil when the
// family has never been registered. ECS reports the absence as a
// ClientException rather than a dedicated not-found type.
func (r Registrar) latest(ctx context.Context, family string) (*ecstypes.TaskDefinition, error) {
	out, err := r.ECS.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
		TaskDefinition: aws.String(family),
	})
	if err != nil {
		var ce *ecstypes.ClientException
		if errors.As(err, &ce) && strings.Contains(aws.ToString(ce.Message), "Unable to describe task definition") {
			return nil, nil
		}
		return nil, fmt.Errorf("describe task definition %q: %w", family, err)
	}
	return out.TaskDefinition, nil
}

// carryForward clones prev into a registration request, replacing only the
// container images.
func carryForward(prev *ecstypes.TaskDefinition, image string) *ecs.RegisterTaskDefinitionInput {
	containers := make([]ecstypes.ContainerDefinition, len(prev.ContainerDefinitions))
	copy(containers, prev.ContainerDefinitions)
	for i := range containers {
		containers[i].Image = aws.String(image)
	}
	return &ecs.RegisterTaskDefinitionInput{
		Family:                  prev.Family,
		ContainerDefinitions:    containers,
		Cpu:                     prev.Cpu,
		Memory:                  prev.Memory,
		NetworkMode:             prev.NetworkMode,
		RequiresCompatibilities: prev.RequiresCompatibilities,
		ExecutionRoleArn:        prev.ExecutionRoleArn,
		TaskRoleArn:             prev.TaskRoleArn,
		Volumes:                 prev.Volumes,
	}
}

func freshDefinition(in Input) *ecs.RegisterTaskDefinitionInput {
	protocol := ecstypes.TransportProtocolTcp
	if in.Protocol == "udp" {
		protocol = ecstypes.TransportProtocolUdp
	}
	return &ecs.RegisterTaskDefinitionInput{
		Family:                  aws.String(in.Family),
		Cpu:                     aws.String(defaultCPU),
		Memory:                  aws.String(defaultMemory),
		NetworkMode:             ecstypes.NetworkModeAwsvpc,
		RequiresCompatibilities: []ecstypes.Compatibility{ecstypes.CompatibilityFargate},
		ExecutionRoleArn:        aws.String(in.ExecutionRoleArn),
		ContainerDefinitions: []ecstypes.ContainerDefinition{{
			Name:      aws.String(in.Family),
			Image:     aws.String(in.Image),
			Essential: aws.Bool(true),
			PortMappings: []ecstypes.PortMapping{{
				ContainerPort: aws.Int32(in.ContainerPort),
				Protocol:      protocol,
			}},
			LogConfiguration: &ecstypes.LogConfiguration{
				LogDriver: ecstypes.LogDriverAwslogs,
				Options: map[string]string{
					"awslogs-group":         LogGroupName(in.Family),
					"awslogs-region":        in.Region,
					"awslogs-stream-prefix": "ecs",
				},
			},
		}},
	}
}

func (r Registrar) ensureLogGroup(ctx context.Context, family string) error {
	name := LogGroupName(family)
	_, err := r.Logs.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(name),
	})
	if err != nil {
		var exists *logstypes.ResourceAlreadyExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create log group %q: %w", name, err)
	}
	slog.Info("created log group", "name", name)
	return nil
}
