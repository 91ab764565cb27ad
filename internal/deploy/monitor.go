package deploy

import (
	"context"
	"time"

	"slipway/internal/rollout"
)

// MonitorRunner adapts rollout.Monitor to the RolloutWaiter interface,
// building a fresh monitor (and so a fresh seen-event set) per deployment.
type MonitorRunner struct {
	Client       rollout.ServiceStatusAPI
	PollInterval time.Duration
	Budget       time.Duration
}

func (m MonitorRunner) Wait(ctx context.Context, cluster, service string, onEvent func(message string)) error {
	mon := &rollout.Monitor{
		Client:       m.Client,
		Cluster:      cluster,
		Service:      service,
		PollInterval: m.PollInterval,
		Budget:       m.Budget,
		OnEvent:      onEvent,
	}
	return mon.Wait(ctx)
}
