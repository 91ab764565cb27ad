// Package provision brings remote AWS resources to their desired state,
// idempotently: each Ensure looks the resource up by name, returns the
// existing identifier untouched when found, and creates it only on the
// specific not-found signal. Re-running any Ensure is always safe.
package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
)

// ECRAPI is the slice of the ECR client the registry provisioner needs.
// Production: *ecr.Client. Testing: in-memory fake.
type ECRAPI interface {
	DescribeRepositories(ctx context.Context, in *ecr.DescribeRepositoriesInput, opts ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
	CreateRepository(ctx context.Context, in *ecr.CreateRepositoryInput, opts ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error)
}

// Registry ensures an ECR repository exists.
type Registry struct {
	Client ECRAPI
}

// Ensure returns the repository URI for name, creating the repository when
// absent. A concurrent creation losing the race is treated as success: the
// describe is retried rather than surfacing already-exists.
func (r Registry) Ensure(ctx context.Context, name string) (string, error) {
	uri, err := r.describe(ctx, name)
	if err == nil {
		slog.Debug("repository exists", "name", name, "uri", uri)
		return uri, nil
	}

	var notFound *ecrtypes.RepositoryNotFoundException
	if !errors.As(err, &notFound) {
		return "", fmt.Errorf("describe repository %q: %w", name, err)
	}

	out, err := r.Client.CreateRepository(ctx, &ecr.CreateRepositoryInput{
		RepositoryName: aws.String(name),
	})
	if err != nil {
		var exists *ecrtypes.RepositoryAlreadyExistsException
		if errors.As(err, &exists) {
			// Lost a describe-then-create race; the repository is there now.
			uri, err := r.describe(ctx, name)
			if err != nil {
				return "", fmt.Errorf("describe repository %q after create race: %w", name, err)
			}
			return uri, nil
		}
		return "", fmt.Errorf("create repository %q: %w", name, err)
	}

	slog.Info("created repository", "name", name)
	return aws.ToString(out.Repository.RepositoryUri), nil
}

func (r Registry) describe(ctx context.Context, name string) (string, error) {
	out, err := r.Client.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	if err != nil {
		return "", err
	}
	if len(out.Repositories) == 0 {
		return "", &ecrtypes.RepositoryNotFoundException{}
	}
	return aws.ToString(out.Repositories[0].RepositoryUri), nil
}
