package provision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const anywhere = "0.0.0.0/0"

// EC2API is the slice of the EC2 client the network resolver needs.
type EC2API interface {
	DescribeVpcs(ctx context.Context, in *ec2.DescribeVpcsInput, opts ...func(*ec2.Options)) (*ec2.DescribeVpcsOutput, error)
	DescribeSubnets(ctx context.Context, in *ec2.DescribeSubnetsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSubnetsOutput, error)
	DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	CreateSecurityGroup(ctx context.Context, in *ec2.CreateSecurityGroupInput, opts ...func(*ec2.Options)) (*ec2.CreateSecurityGroupOutput, error)
	AuthorizeSecurityGroupIngress(ctx context.Context, in *ec2.AuthorizeSecurityGroupIngressInput, opts ...func(*ec2.Options)) (*ec2.AuthorizeSecurityGroupIngressOutput, error)
}

// Placement is where a service's tasks run: the default VPC's subnets plus a
// project-scoped security group.
type Placement struct {
	VpcID           string
	SubnetIDs       []string
	SecurityGroupID string
	AssignPublicIP  bool
}

// Network resolves the account's default-VPC placement for a project.
type Network struct {
	Client EC2API
}

// Resolve finds the default VPC, its subnets, and the project security group,
// creating the group (with HTTP, HTTPS and the container port open) when
// absent. The group name is derived from the project so re-runs find the same
// group instead of creating duplicates.
func (n Network) Resolve(ctx context.Context, project string, containerPort int32) (Placement, error) {
	vpcOut, err := n.Client.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{Name: aws.String("is-default"), Values: []string{"true"}}},
	})
	if err != nil {
		return Placement{}, fmt.Errorf("describe default vpc: %w", err)
	}
	if len(vpcOut.Vpcs) == 0 {
		return Placement{}, ErrNoDefaultNetwork
	}
	vpcID := aws.ToString(vpcOut.Vpcs[0].VpcId)

	subnetOut, err := n.Client.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{Name: aws.String("vpc-id"), Values: []string{vpcID}}},
	})
	if err != nil {
		return Placement{}, fmt.Errorf("describe subnets in %s: %w", vpcID, err)
	}
	if len(subnetOut.Subnets) == 0 {
		return Placement{}, &PreconditionError{Resource: "subnets", Reason: "default VPC " + vpcID + " has no subnets"}
	}
	subnetIDs := make([]string, 0, len(subnetOut.Subnets))
	for _, s := range subnetOut.Subnets {
		subnetIDs = append(subnetIDs, aws.ToString(s.SubnetId))
	}

	groupID, err := n.ensureSecurityGroup(ctx, vpcID, project, containerPort)
	if err != nil {
		return Placement{}, err
	}

	return Placement{
		VpcID:           vpcID,
		SubnetIDs:       subnetIDs,
		SecurityGroupID: groupID,
		AssignPublicIP:  true, // default-VPC subnets are public; tasks need a public IP to pull images
	}, nil
}

// SecurityGroupName derives the deterministic group name for a project.
func SecurityGroupName(project string) string {
	return project + "-sg"
}

func (n Network) ensureSecurityGroup(ctx context.Context, vpcID, project string, containerPort int32) (string, error) {
	groupName := SecurityGroupName(project)

	existing, err := n.Client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: []ec2types.Filter{
			{Name: aws.String("group-name"), Values: []string{groupName}},
			{Name: aws.String("vpc-id"), Values: []string{vpcID}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe security group %q: %w", groupName, err)
	}
	if len(existing.SecurityGroups) > 0 {
		id := aws.ToString(existing.SecurityGroups[0].GroupId)
		slog.Debug("security group exists", "name", groupName, "id", id)
		return id, nil
	}

	created, err := n.Client.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
		GroupName:   aws.String(groupName),
		Description: aws.String("slipway-managed ingress for " + project),
		VpcId:       aws.String(vpcID),
	})
	if err != nil {
		if hasErrorCode(err, "InvalidGroup.Duplicate") {
			// Created concurrently; look it up again.
			return n.ensureSecurityGroup(ctx, vpcID, project, containerPort)
		}
		return "", fmt.Errorf("create security group %q: %w", groupName, err)
	}
	groupID := aws.ToString(created.GroupId)
	slog.Info("created security group", "name", groupName, "id", groupID)

	ports := []int32{80, 443}
	if containerPort != 80 && containerPort != 443 {
		ports = append(ports, containerPort)
	}
	perms := make([]ec2types.IpPermission, 0, len(ports))
	for _, port := range ports {
		perms = append(perms, ec2types.IpPermission{
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(port),
			ToPort:     aws.Int32(port),
			IpRanges:   []ec2types.IpRange{{CidrIp: aws.String(anywhere)}},
		})
	}
	if _, err := n.Client.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
		GroupId:       aws.String(groupID),
		IpPermissions: perms,
	}); err != nil && !hasErrorCode(err, "InvalidPermission.Duplicate") {
		return "", fmt.Errorf("authorize ingress on %q: %w", groupName, err)
	}
	return groupID, nil
}
