package provision_test

import (
	"context"
	"testing"

	"slipway/internal/provision"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
)

type fakeIAM struct {
	roles       map[string]string // name -> arn
	createCalls int
	attached    []string
	getErr      error
}

func (f *fakeIAM) GetRole(_ context.Context, in *iam.GetRoleInput, _ ...func(*iam.Options)) (*iam.GetRoleOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	name := aws.ToString(in.RoleName)
	arn, ok := f.roles[name]
	if !ok {
		return nil, &iamtypes.NoSuchEntityException{Message: aws.String("role " + name + " not found")}
	}
	return &iam.GetRoleOutput{Role: &iamtypes.Role{RoleName: in.RoleName, Arn: aws.String(arn)}}, nil
}

func (f *fakeIAM) CreateRole(_ context.Context, in *iam.CreateRoleInput, _ ...func(*iam.Options)) (*iam.CreateRoleOutput, error) {
	f.createCalls++
	name := aws.ToString(in.RoleName)
	if aws.ToString(in.AssumeRolePolicyDocument) == "" {
		return nil, &iamtypes.MalformedPolicyDocumentException{Message: aws.String("empty trust policy")}
	}
	arn := "arn:aws:iam::123456789012:role/" + name
	if f.roles == nil {
		f.roles = map[string]string{}
	}
	f.roles[name] = arn
	return &iam.CreateRoleOutput{Role: &iamtypes.Role{RoleName: in.RoleName, Arn: aws.String(arn)}}, nil
}

func (f *fakeIAM) AttachRolePolicy(_ context.Context, in *iam.AttachRolePolicyInput, _ ...func(*iam.Options)) (*iam.AttachRolePolicyOutput, error) {
	// IAM treats re-attaching a managed policy as a no-op; mirror that.
	f.attached = append(f.attached, aws.ToString(in.PolicyArn))
	return &iam.AttachRolePolicyOutput{}, nil
}

func TestRoleEnsureCreatesAndAttaches(t *testing.T) {
	api := &fakeIAM{}
	arn, err := provision.Role{Client: api}.Ensure(t.Context(), "acme-prod-exec")
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if arn != "arn:aws:iam::123456789012:role/acme-prod-exec" {
		t.Fatalf("Ensure() arn = %q", arn)
	}
	if api.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", api.createCalls)
	}
	if len(api.attached) != 1 {
		t.Fatalf("attached policies = %v, want exactly one", api.attached)
	}
}

func TestRoleEnsureIsIdempotent(t *testing.T) {
	api := &fakeIAM{}
	role := provision.Role{Client: api}

	first, err := role.Ensure(t.Context(), "acme-prod-exec")
	if err != nil {
		t.Fatalf("first Ensure() error = %v", err)
	}
	second, err := role.Ensure(t.Context(), "acme-prod-exec")
	if err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	if first != second {
		t.Fatalf("Ensure() arns differ: %q vs %q", first, second)
	}
	if api.createCalls != 1 {
		t.Fatalf("create calls = %d, want 1", api.createCalls)
	}
}

func TestRoleEnsurePropagatesLookupErrors(t *testing.T) {
	api := &fakeIAM{getErr: &iamtypes.ServiceFailureException{Message: aws.String("iam is down")}}
	if _, err := (provision.Role{Client: api}).Ensure(t.Context(), "acme-prod-exec"); err == nil {
		t.Fatal("Ensure() expected error")
	}
	if api.createCalls != 0 {
		t.Fatalf("create calls = %d, want 0", api.createCalls)
	}
}
