package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

// executionPolicyArn grants pulling from ECR and writing to CloudWatch Logs.
const executionPolicyArn = "arn:aws:iam::aws:policy/service-role/AmazonECSTaskExecutionRolePolicy"

// ecsTrustPolicy lets the ECS task launcher assume the execution role.
const ecsTrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ecs-tasks.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// IAMAPI is the slice of the IAM client the role provisioner needs.
type IAMAPI interface {
	GetRole(ctx context.Context, in *iam.GetRoleInput, opts ...func(*iam.Options)) (*iam.GetRoleOutput, error)
	CreateRole(ctx context.Context, in *iam.CreateRoleInput, opts ...func(*iam.Options)) (*iam.CreateRoleOutput, error)
	AttachRolePolicy(ctx context.Context, in *iam.AttachRolePolicyInput, opts ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error)
}

// Role ensures the task execution role exists with the managed execution
// policy attached.
type Role struct {
	Client IAMAPI
}

// Ensure returns the role ARN for name, creating the role when absent.
// AttachRolePolicy runs on every call — attaching an already-attached managed
// policy is a no-op on the IAM side, so the attachment is idempotent too.
func (r Role) Ensure(ctx context.Context, name string) (string, error) {
	arn, err := r.lookup(ctx, name)
	if err != nil {
		var notFound *iamtypes.NoSuchEntityException
		if !errors.As(err, &notFound) {
			return "", fmt.Errorf("get role %q: %w", name, err)
		}

		created, createErr := r.Client.CreateRole(ctx, &iam.CreateRoleInput{
			RoleName:                 aws.String(name),
			AssumeRolePolicyDocument: aws.String(ecsTrustPolicy),
			Description:              aws.String("slipway-managed ECS task execution role"),
		})
		if createErr != nil {
			var exists *iamtypes.EntityAlreadyExistsException
			if errors.As(createErr, &exists) {
				arn, err = r.lookup(ctx, name)
				if err != nil {
					return "", fmt.Errorf("get role %q after create race: %w", name, err)
				}
			} else {
				return "", fmt.Errorf("create role %q: %w", name, createErr)
			}
		} else {
			arn = aws.ToString(created.Role.Arn)
			slog.Info("created role", "name", name)
		}
	} else {
		slog.Debug("role exists", "name", name, "arn", arn)
	}

	if _, err := r.Client.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(name),
		PolicyArn: aws.String(executionPolicyArn),
	}); err != nil {
		return "", fmt.Errorf("attach execution policy to role %q: %w", name, err)
	}
	return arn, nil
}

func (r Role) lookup(ctx context.Context, name string) (string, error) {
	out, err := r.Client.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		return "", err
	}
	return aws.ToString(out.Role.Arn), nil
}
