package provision_test

import (
	"context"
	"errors"
	"testing"

	"slipway/internal/provision"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/smithy-go"
)

type fakeECR struct {
	repos         map[string]string // name -> uri
	createCalls   int
	describeCalls int
	describeErr   error
	createErr     error

	// missFirstDescribe simulates a describe-then-create race: the first
	// describe reports not-found even though the repository exists.
	missFirstDescribe bool
}

func (f *fakeECR) DescribeRepositories(_ context.Context, in *ecr.DescribeRepositoriesInput, _ ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error) {
	f.describeCalls++
	if f.describeErr != nil {
		return nil, f.describeErr
	}
	name := in.RepositoryNames[0]
	if f.missFirstDescribe && f.describeCalls == 1 {
		return nil, &ecrtypes.RepositoryNotFoundException{Message: aws.String("repository " + name + " not found")}
	}
	uri, ok := f.repos[name]
	if !ok {
		return nil, &ecrtypes.RepositoryNotFoundException{Message: aws.String("repository " + name + " not found")}
	}
	return &ecr.DescribeRepositoriesOutput{
		Repositories: []ecrtypes.Repository{{RepositoryName: aws.String(name), RepositoryUri: aws.String(uri)}},
	}, nil
}

func (f *fakeECR) CreateRepository(_ context.Context, in *ecr.CreateRepositoryInput, _ ...func(*ecr.Options)) (*ecr.CreateRepositoryOutput, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	name := aws.ToString(in.RepositoryName)
	uri := "123456789012.dkr.ecr.us-east-1.amazonaws.com/" + name
	if f.repos == nil {
		f.repos = map[string]string{}
	}
	f.repos[name] = uri
	return &ecr.CreateRepositoryOutput{
		Repository: &ecrtypes.Repository{RepositoryName: in.RepositoryName, RepositoryUri: aws.String(uri)},
	}, nil
}

func TestRegistryEnsureCreatesWhenAbsent(t *testing.T) {
	api := &fakeECR{}
	uri, err := provision.Registry{Client: api}.Ensure(t.Context(), "acme-prod")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if uri != "123456789012.dkr.ecr.us-east-1.amazonaws.com/acme-prod" {
		t.Fatalf("Ensure() uri = %q", uri)
	}
	if api.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", api.createCalls)
	}
}

func TestRegistryEnsureIsIdempotent(t *testing.T) {
	api := &fakeECR{}
	reg := provision.Registry{Client: api}

	first, err := reg.Ensure(t.Context(), "acme-prod")
	if err != nil {
		t.Fatalf("first Ensure() error = %v", err)
	}
	second, err := reg.Ensure(t.Context(), "acme-prod")
	if err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	if first != second {
		t.Fatalf("Ensure() uris differ: %q vs %q", first, second)
	}
	if api.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", api.createCalls)
	}
}

func TestRegistryEnsurePropagatesNonNotFound(t *testing.T) {
	denied := &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}
	api := &fakeECR{describeErr: denied}

	_, err := provision.Registry{Client: api}.Ensure(t.Context(), "acme-prod")
	if err == nil {
		t.Fatal("Ensure() expected error")
	}
	var ae smithy.APIError
	if !errors.As(err, &ae) || ae.ErrorCode() != "AccessDeniedException" {
		t.Fatalf("Ensure() error = %v, want wrapped AccessDeniedException", err)
	}
	if api.createCalls != 0 {
		t.Fatalf("create calls = %d, want 0: access denied must not be read as not-found", api.createCalls)
	}
}

func TestRegistryEnsureTreatsCreateRaceAsSuccess(t *testing.T) {
	// Another deployer wins the race: the first describe misses, create
	// reports already-exists, and the retry describe finds the repository.
	api := &fakeECR{
		repos:             map[string]string{"acme-prod": "123456789012.dkr.ecr.us-east-1.amazonaws.com/acme-prod"},
		createErr:         &ecrtypes.RepositoryAlreadyExistsException{Message: aws.String("exists")},
		missFirstDescribe: true,
	}

	uri, err := provision.Registry{Client: api}.Ensure(t.Context(), "acme-prod")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if uri != "123456789012.dkr.ecr.us-east-1.amazonaws.com/acme-prod" {
		t.Fatalf("Ensure() uri = %q", uri)
	}
}
