// Package deploy sequences one deployment attempt end to end: preflight,
// idempotent provisioning, image push, task definition registration, service
// reconciliation, rollout monitoring.
//
// Any stage failure aborts all later stages. Nothing is rolled back: every
// provisioning step is idempotent, so already-created cloud resources are
// simply reused by the next attempt.
package deploy

import (
	"context"
	"fmt"
	"time"

	"slipway/internal/check"
	"slipway/internal/provision"
	"slipway/internal/rollout"
	"slipway/internal/taskdef"
)

// Ensurer is the shared shape of the registry, role and cluster provisioners.
type Ensurer interface {
	Ensure(ctx context.Context, name string) (string, error)
}

// NetworkResolver discovers the placement a service will run in.
type NetworkResolver interface {
	Resolve(ctx context.Context, project string, containerPort int32) (provision.Placement, error)
}

// ImagePusher validates and ships the locally built image.
type ImagePusher interface {
	VerifyLocalImage(ctx context.Context, localImage string) error
	Push(ctx context.Context, localImage, repositoryURI, tag string) (string, error)
}

// TaskRegistrar registers a new task definition revision.
type TaskRegistrar interface {
	Register(ctx context.Context, in taskdef.Input) (taskdef.Spec, error)
}

// ServiceReconciler creates or force-updates the service.
type ServiceReconciler interface {
	Reconcile(ctx context.Context, in rollout.ReconcileInput) (rollout.Outcome, error)
}

// RolloutWaiter blocks until the service is stable, failed or timed out.
type RolloutWaiter interface {
	Wait(ctx context.Context, cluster, service string, onEvent func(message string)) error
}

// Input is one resolved deployment request.
type Input struct {
	Environment   string
	Region        string
	Project       string
	Cluster       string
	Service       string
	LocalImage    string
	Tag           string // defaults to latest
	ContainerPort int32
	Protocol      string
}

// Summary is what a successful run reports back.
type Summary struct {
	Environment string
	Region      string
	Cluster     string
	Service     string
	Repository  string
	ImageRef    string
	Revision    int32
	Outcome     rollout.Outcome
	Duration    time.Duration
}

// ProgressEvent surfaces orchestrator progress to the caller.
// Events are sent with non-blocking writes and may be dropped if the
// channel is full.
type ProgressEvent struct {
	Type    string // stage_started | stage_complete | service_event
	Stage   string
	Message string
}

// Orchestrator owns the lifecycle of a single deployment attempt.
type Orchestrator struct {
	Registry   Ensurer
	Role       Ensurer
	Cluster    Ensurer
	Network    NetworkResolver
	Pusher     ImagePusher
	Registrar  TaskRegistrar
	Reconciler ServiceReconciler
	Monitor    RolloutWaiter

	ClockCheck func() error // optional preflight; nil skips it
	Clock      rollout.Clock
	Events     chan<- ProgressEvent
}

// RepositoryName derives the registry repository name for a deployment.
func RepositoryName(project, environment string) string {
	return project + "-" + environment
}

// RoleName derives the execution role name for a deployment.
func RoleName(project, environment string) string {
	return project + "-" + environment + "-exec"
}

// Run executes the full pipeline and returns the success summary. The
// returned error is whatever the failing stage produced, unclassified.
func (o *Orchestrator) Run(ctx context.Context, in Input) (Summary, error) {
	check.Assert(o.Registry != nil, "Orchestrator.Run: Registry must not be nil")
	check.Assert(o.Reconciler != nil, "Orchestrator.Run: Reconciler must not be nil")
	check.Assert(o.Monitor != nil, "Orchestrator.Run: Monitor must not be nil")

	clock := o.Clock
	if clock == nil {
		clock = rollout.RealClock{}
	}
	tag := in.Tag
	if tag == "" {
		tag = "latest"
	}
	start := clock.Now()

	summary := Summary{
		Environment: in.Environment,
		Region:      in.Region,
		Cluster:     in.Cluster,
		Service:     in.Service,
	}

	if err := o.stage(ctx, "preflight", func(ctx context.Context) error {
		if err := o.Pusher.VerifyLocalImage(ctx, in.LocalImage); err != nil {
			return err
		}
		if o.ClockCheck != nil {
			return o.ClockCheck()
		}
		return nil
	}); err != nil {
		return summary, err
	}

	var repositoryURI string
	if err := o.stage(ctx, "registry", func(ctx context.Context) error {
		uri, err := o.Registry.Ensure(ctx, RepositoryName(in.Project, in.Environment))
		repositoryURI = uri
		return err
	}); err != nil {
		return summary, err
	}
	summary.Repository = repositoryURI

	if err := o.stage(ctx, "cluster", func(ctx context.Context) error {
		_, err := o.Cluster.Ensure(ctx, in.Cluster)
		return err
	}); err != nil {
		return summary, err
	}

	var roleArn string
	if err := o.stage(ctx, "role", func(ctx context.Context) error {
		arn, err := o.Role.Ensure(ctx, RoleName(in.Project, in.Environment))
		roleArn = arn
		return err
	}); err != nil {
		return summary, err
	}

	var placement provision.Placement
	if err := o.stage(ctx, "network", func(ctx context.Context) error {
		p, err := o.Network.Resolve(ctx, in.Project, in.ContainerPort)
		placement = p
		return err
	}); err != nil {
		return summary, err
	}

	var imageRef string
	if err := o.stage(ctx, "push", func(ctx context.Context) error {
		ref, err := o.Pusher.Push(ctx, in.LocalImage, repositoryURI, tag)
		imageRef = ref
		return err
	}); err != nil {
		return summary, err
	}
	summary.ImageRef = imageRef

	var spec taskdef.Spec
	if err := o.stage(ctx, "taskdef", func(ctx context.Context) error {
		s, err := o.Registrar.Register(ctx, taskdef.Input{
			Family:           in.Service,
			Image:            imageRef,
			ExecutionRoleArn: roleArn,
			ContainerPort:    in.ContainerPort,
			Protocol:         in.Protocol,
			Region:           in.Region,
		})
		spec = s
		return err
	}); err != nil {
		return summary, err
	}
	summary.Revision = spec.Revision

	if err := o.stage(ctx, "service", func(ctx context.Context) error {
		outcome, err := o.Reconciler.Reconcile(ctx, rollout.ReconcileInput{
			Cluster:           in.Cluster,
			Service:           in.Service,
			TaskDefinitionArn: spec.Arn,
			Placement:         placement,
		})
		summary.Outcome = outcome
		return err
	}); err != nil {
		return summary, err
	}

	if err := o.stage(ctx, "rollout", func(ctx context.Context) error {
		return o.Monitor.Wait(ctx, in.Cluster, in.Service, func(message string) {
			o.emit(ProgressEvent{Type: "service_event", Stage: "rollout", Message: message})
		})
	}); err != nil {
		return summary, err
	}

	summary.Duration = clock.Now().Sub(start)
	return summary, nil
}

// stage wraps one pipeline step with progress events. Errors pass through
// untouched — classification is the caller's concern, not ours.
func (o *Orchestrator) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.emit(ProgressEvent{Type: "stage_started", Stage: name})
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	o.emit(ProgressEvent{Type: "stage_complete", Stage: name})
	return nil
}

// emit sends a progress event if a channel is configured. Non-blocking;
// events are dropped if the channel is full.
func (o *Orchestrator) emit(ev ProgressEvent) {
	if o.Events == nil {
		return
	}
	select {
	case o.Events <- ev:
	default:
	}
}
