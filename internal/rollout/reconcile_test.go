package rollout_test

import (
	"context"
	"errors"
	"testing"

	"slipway/internal/provision"
	"slipway/internal/rollout"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

type fakeServiceECS struct {
	status      string // "" means the service does not exist
	createCalls int
	updateCalls int
	lastCreate  *ecs.CreateServiceInput
	lastUpdate  *ecs.UpdateServiceInput
}

func (f *fakeServiceECS) DescribeServices(_ context.Context, in *ecs.DescribeServicesInput, _ ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error) {
	if f.status == "" {
		return &ecs.DescribeServicesOutput{
			Failures: []ecstypes.Failure{{Reason: aws.String("MISSING")}},
		}, nil
	}
	return &ecs.DescribeServicesOutput{
		Services: []ecstypes.Service{{
			ServiceName: aws.String(in.Services[0]),
			Status:      aws.String(f.status),
		}},
	}, nil
}

func (f *fakeServiceECS) CreateService(_ context.Context, in *ecs.CreateServiceInput, _ ...func(*ecs.Options)) (*ecs.CreateServiceOutput, error) {
	f.createCalls++
	f.lastCreate = in
	f.status = "ACTIVE"
	return &ecs.CreateServiceOutput{Service: &ecstypes.Service{ServiceName: in.ServiceName}}, nil
}

func (f *fakeServiceECS) UpdateService(_ context.Context, in *ecs.UpdateServiceInput, _ ...func(*ecs.Options)) (*ecs.UpdateServiceOutput, error) {
	f.updateCalls++
	f.lastUpdate = in
	return &ecs.UpdateServiceOutput{Service: &ecstypes.Service{ServiceName: in.Service}}, nil
}

func testPlacement() provision.Placement {
	return provision.Placement{
		VpcID:           "vpc-123",
		SubnetIDs:       []string{"subnet-a", "subnet-b"},
		SecurityGroupID: "sg-123",
		AssignPublicIP:  true,
	}
}

func TestReconcileCreatesAbsentService(t *testing.T) {
	api := &fakeServiceECS{}
	outcome, err := rollout.Reconciler{Client: api}.Reconcile(t.Context(), rollout.ReconcileInput{
		Cluster:           "acme-prod",
		Service:           "acme-prod",
		TaskDefinitionArn: "arn:aws:ecs:us-east-1:123456789012:task-definition/acme-prod:1",
		Placement:         testPlacement(),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if outcome != rollout.OutcomeCreated {
		t.Fatalf("outcome = %q, want created", outcome)
	}
	if api.createCalls != 1 || api.updateCalls != 0 {
		t.Fatalf("create=%d update=%d, want 1/0", api.createCalls, api.updateCalls)
	}
	if got := aws.ToInt32(api.lastCreate.DesiredCount); got != 1 {
		t.Fatalf("DesiredCount = %d, want 1", got)
	}
	vpcCfg := api.lastCreate.NetworkConfiguration.AwsvpcConfiguration
	if len(vpcCfg.Subnets) != 2 || vpcCfg.SecurityGroups[0] != "sg-123" {
		t.Fatalf("network config = %+v", vpcCfg)
	}
	if vpcCfg.AssignPublicIp != ecstypes.AssignPublicIpEnabled {
		t.Fatalf("AssignPublicIp = %v, want enabled", vpcCfg.AssignPublicIp)
	}
}

func TestReconcileForceUpdatesActiveService(t *testing.T) {
	api := &fakeServiceECS{status: "ACTIVE"}
	outcome, err := rollout.Reconciler{Client: api}.Reconcile(t.Context(), rollout.ReconcileInput{
		Cluster:           "acme-prod",
		Service:           "acme-prod",
		TaskDefinitionArn: "arn:aws:ecs:us-east-1:123456789012:task-definition/acme-prod:7",
		Placement:         testPlacement(),
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if outcome != rollout.OutcomeUpdated {
		t.Fatalf("outcome = %q, want updated", outcome)
	}
	if api.updateCalls != 1 || api.createCalls != 0 {
		t.Fatalf("create=%d update=%d, want 0/1", api.createCalls, api.updateCalls)
	}
	if !api.lastUpdate.ForceNewDeployment {
		t.Fatal("ForceNewDeployment = false, want true: every deploy restarts tasks")
	}
}

func TestReconcileRefusesNonActiveService(t *testing.T) {
	for _, status := range []string{"DRAINING", "INACTIVE"} {
		api := &fakeServiceECS{status: status}
		_, err := rollout.Reconciler{Client: api}.Reconcile(t.Context(), rollout.ReconcileInput{
			Cluster: "acme-prod",
			Service: "acme-prod",
		})
		var precondition *provision.PreconditionError
		if !errors.As(err, &precondition) {
			t.Fatalf("Reconcile() with status %s: error = %v, want PreconditionError", status, err)
		}
		if api.createCalls != 0 || api.updateCalls != 0 {
			t.Fatalf("status %s mutated the service: create=%d update=%d", status, api.createCalls, api.updateCalls)
		}
	}
}
