package rollout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"slipway/internal/check"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"
)

const (
	// defaultPollInterval is 15s: ECS emits service events at roughly that
	// cadence, polling faster only burns API quota.
	defaultPollInterval = 15 * time.Second
	// defaultBudget is 10m: a Fargate task that has not stabilized in ten
	// minutes is not going to.
	defaultBudget = 10 * time.Minute
)

// Clock abstracts time.Now() for deterministic testing.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// ServiceStatusAPI is the read-only slice of the ECS client the monitor needs.
type ServiceStatusAPI interface {
	DescribeServices(ctx context.Context, in *ecs.DescribeServicesInput, opts ...func(*ecs.Options)) (*ecs.DescribeServicesOutput, error)
}

// FailedError means a failure-pattern event was observed during the rollout.
type FailedError struct {
	Message string
}

func (e *FailedError) Error() string {
	return "rollout failed: " + e.Message
}

// TimeoutError means the stability predicate was never satisfied within the
// monitor's budget.
type TimeoutError struct {
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("rollout did not stabilize within %s", e.Elapsed.Round(time.Second))
}

// Monitor polls a service until its rollout reaches steady state, fails, or
// exceeds the time budget.
type Monitor struct {
	Client  ServiceStatusAPI
	Cluster string
	Service string

	PollInterval   time.Duration // defaults to 15s
	Budget         time.Duration // defaults to 10m
	FailurePhrases []string      // defaults to DefaultFailurePhrases

	Clock   Clock                                       // defaults to RealClock
	Sleep   func(context.Context, time.Duration) error  // defaults to context-aware sleep
	OnEvent func(message string)                        // informational events, at most once per event id
}

// Wait blocks until the service is stable on its PRIMARY deployment.
//
// Stability requires all three at once: a PRIMARY deployment exists, its
// running count equals its desired count, and it is the only deployment —
// a draining prior revision still counts as in-flight even when the PRIMARY
// counts already match.
func (m *Monitor) Wait(ctx context.Context) error {
	check.Assert(m.Client != nil, "Monitor.Wait: Client must not be nil")

	interval := m.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	budget := m.Budget
	if budget <= 0 {
		budget = defaultBudget
	}
	phrases := m.FailurePhrases
	if phrases == nil {
		phrases = DefaultFailurePhrases
	}
	clock := m.Clock
	if clock == nil {
		clock = RealClock{}
	}
	sleep := m.Sleep
	if sleep == nil {
		sleep = ctxSleep
	}

	start := clock.Now()
	seen := make(map[string]struct{})

	for {
		svc, found, err := lookupService(ctx, m.Client, m.Cluster, m.Service)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("service %q disappeared while monitoring rollout", m.Service)
		}

		if err := m.processEvents(svc.Events, seen, phrases); err != nil {
			return err
		}

		if isStable(svc.Deployments) {
			slog.Debug("rollout stable", "service", m.Service, "elapsed", clock.Now().Sub(start))
			return nil
		}

		if elapsed := clock.Now().Sub(start); elapsed >= budget {
			return &TimeoutError{Elapsed: elapsed}
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

// processEvents inspects every not-yet-seen event exactly once. A failure
// phrase aborts immediately — the remaining budget is irrelevant once ECS
// has said the rollout is dying.
func (m *Monitor) processEvents(events []ecstypes.ServiceEvent, seen map[string]struct{}, phrases []string) error {
	// Oldest first, so informational output reads chronologically.
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		id := aws.ToString(ev.Id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		message := aws.ToString(ev.Message)
		if classifyEvent(message, phrases) {
			return &FailedError{Message: message}
		}
		if m.OnEvent != nil {
			m.OnEvent(message)
		}
	}
	return nil
}

// isStable is the stability predicate: exactly one deployment, it is PRIMARY,
// and its running count has reached its desired count.
func isStable(deployments []ecstypes.Deployment) bool {
	if len(deployments) != 1 {
		return false
	}
	d := deployments[0]
	if aws.ToString(d.Status) != "PRIMARY" {
		return false
	}
	return d.DesiredCount > 0 && d.RunningCount == d.DesiredCount
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
