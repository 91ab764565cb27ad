// Package deploycmd implements "slipway deploy": one full deployment of the
// locally built image to the target environment.
package deploycmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"slipway/cmd/slipway/cmdutil"
	"slipway/cmd/slipway/ui"
	"slipway/internal/deploy"
	"slipway/internal/history"
	"slipway/internal/imagepush"
	"slipway/internal/preflight"
	"slipway/internal/provision"
	"slipway/internal/rollout"
	"slipway/internal/taskdef"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"
)

// Buffered enough that a burst of service events never blocks the pipeline.
const eventBufferCapacity = 64

// Cmd returns the "slipway deploy" command.
func Cmd() *cobra.Command {
	var (
		envName        string
		region         string
		clusterName    string
		serviceName    string
		image          string
		tag            string
		port           string
		skipClockCheck bool
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build nothing, deploy the locally built image to ECS Fargate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := cmdutil.ResolveTarget(envName, cmdutil.Overrides{
				Region:  region,
				Cluster: clusterName,
				Service: serviceName,
				Image:   image,
				Port:    port,
			})
			if err != nil {
				return err
			}
			return run(cmd.Context(), target, tag, skipClockCheck)
		},
	}

	cmd.Flags().StringVar(&envName, "env", "", "Environment name (defaults to current-environment)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region override")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Cluster name override")
	cmd.Flags().StringVar(&serviceName, "service", "", "Service name override")
	cmd.Flags().StringVar(&image, "image", "", "Local image to push (defaults to project name)")
	cmd.Flags().StringVar(&tag, "tag", "", "Image tag to push (defaults to latest)")
	cmd.Flags().StringVar(&port, "port", "", "Container port spec, e.g. 8080 or 8080/tcp")
	cmd.Flags().BoolVar(&skipClockCheck, "skip-clock-check", false, "Skip the NTP clock skew preflight")
	return cmd
}

func run(ctx context.Context, target cmdutil.Target, tag string, skipClockCheck bool) error {
	clients, err := cmdutil.NewClients(ctx, target.Region)
	if err != nil {
		return err
	}

	// Resolving the caller identity doubles as a credential check: fail
	// here with a clear message instead of midway through provisioning.
	account, err := provision.ResolveAccount(ctx, clients.STS)
	if err != nil {
		return fmt.Errorf("verify aws credentials: %w", err)
	}

	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("connect to docker: %w", err)
	}
	defer docker.Close()

	orch := &deploy.Orchestrator{
		Registry:   provision.Registry{Client: clients.ECR},
		Role:       provision.Role{Client: clients.IAM},
		Cluster:    provision.Cluster{Client: clients.ECS},
		Network:    provision.Network{Client: clients.EC2},
		Pusher:     imagepush.Pusher{Docker: docker, ECR: clients.ECR},
		Registrar:  taskdef.Registrar{ECS: clients.ECS, Logs: clients.Logs},
		Reconciler: rollout.Reconciler{Client: clients.ECS},
		Monitor:    deploy.MonitorRunner{Client: clients.ECS},
	}
	if !skipClockCheck {
		orch.ClockCheck = preflight.ClockCheck{}.Run
	}

	in := deploy.Input{
		Environment:   target.Name,
		Region:        target.Region,
		Project:       target.Project,
		Cluster:       target.Cluster,
		Service:       target.Service,
		LocalImage:    target.LocalImage,
		Tag:           tag,
		ContainerPort: target.ContainerPort,
		Protocol:      target.Protocol,
	}

	fmt.Fprintln(os.Stderr, ui.InfoMsg("deploying %s to %s (%s, account %s)",
		ui.Accent(target.Service), ui.Accent(target.Name), target.Region, account))

	events := make(chan deploy.ProgressEvent, eventBufferCapacity)
	orch.Events = events
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range events {
			line, ok := formatProgressEvent(ev)
			if !ok {
				continue
			}
			fmt.Fprintln(os.Stderr, line)
		}
	}()

	started := time.Now()
	summary, err := orch.Run(ctx, in)
	close(events)
	<-done

	record(ctx, summary, err, started)

	if err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorMsg("%v", err))
		return fmt.Errorf("deploy %s to %s failed", target.Service, target.Name)
	}

	fmt.Println(ui.SuccessMsg("service %s deployed to %s in %s",
		ui.Accent(summary.Service), ui.Accent(summary.Environment), summary.Duration.Round(time.Second)))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("environment", summary.Environment),
		ui.KV("region", summary.Region),
		ui.KV("cluster", summary.Cluster),
		ui.KV("service", summary.Service),
		ui.KV("image", summary.ImageRef),
		ui.KV("revision", strconv.Itoa(int(summary.Revision))),
		ui.KV("outcome", string(summary.Outcome)),
	))
	return nil
}

// record appends the attempt to local history. History failures never fail
// the deploy; they only warn.
func record(ctx context.Context, summary deploy.Summary, deployErr error, started time.Time) {
	store, err := history.Open(history.DefaultPath())
	if err != nil {
		slog.Warn("deploy history unavailable", "error", err)
		return
	}
	defer store.Close()

	rec := history.Record{
		Environment: summary.Environment,
		Region:      summary.Region,
		Cluster:     summary.Cluster,
		Service:     summary.Service,
		Repository:  summary.Repository,
		ImageRef:    summary.ImageRef,
		Revision:    summary.Revision,
		Outcome:     "succeeded",
		StartedAt:   started,
		FinishedAt:  time.Now(),
	}
	if deployErr != nil {
		rec.Outcome = "failed"
		rec.Error = deployErr.Error()
	}
	if err := store.Append(ctx, rec); err != nil {
		slog.Warn("record deploy history", "error", err)
	}
}

func formatProgressEvent(ev deploy.ProgressEvent) (string, bool) {
	switch ev.Type {
	case "stage_started":
		label, ok := stageLabels[ev.Stage]
		if !ok {
			return "", false
		}
		return ui.InfoMsg("%s", label), true
	case "service_event":
		msg := strings.TrimSpace(ev.Message)
		if msg == "" {
			return "", false
		}
		return ui.Muted("  " + msg), true
	default:
		return "", false
	}
}

var stageLabels = map[string]string{
	"preflight": "checking local image and clock",
	"registry":  "ensuring container registry",
	"cluster":   "ensuring cluster",
	"role":      "ensuring execution role",
	"network":   "resolving network placement",
	"push":      "pushing image",
	"taskdef":   "registering task definition",
	"service":   "reconciling service",
	"rollout":   "waiting for rollout to stabilize",
}
