package sim

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/fleetsim/fleetsim/pkg/api"
)

// Scenario describes a scripted chaos run: provision a small fleet, let
// monitoring watch it, and keep poking it with faults, recoveries, and
// scale changes until the clock runs out.
type Scenario struct {
	Services     int
	Duration     time.Duration
	ActionEvery  time.Duration
	MaxInstances int
	Seed         int64
}

func (sc Scenario) withDefaults() Scenario {
	if sc.Services <= 0 {
		sc.Services = 3
	}
	if sc.Duration <= 0 {
		sc.Duration = 30 * time.Second
	}
	if sc.ActionEvery <= 0 {
		sc.ActionEvery = 3 * time.Second
	}
	if sc.MaxInstances <= 0 {
		sc.MaxInstances = 5
	}
	if sc.Seed == 0 {
		sc.Seed = time.Now().UnixNano()
	}
	return sc
}

// Run drives the scenario against the orchestrator and returns a report of
// the final state. The snapshot is taken before the fleet is torn down so
// the report shows the services as they ran.
func Run(ctx context.Context, o *Orchestrator, sc Scenario) api.RunReport {
	sc = sc.withDefaults()
	started := time.Now()
	rng := rand.New(rand.NewSource(sc.Seed))

	ids := make([]string, sc.Services)
	for i := range ids {
		ids[i] = fmt.Sprintf("svc-%d", i+1)
		o.ProvisionService(ids[i])
	}
	o.StartMonitoring()

	ticker := time.NewTicker(sc.ActionEvery)
	defer ticker.Stop()
	deadline := time.After(sc.Duration)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-deadline:
			break loop
		case <-ticker.C:
			id := ids[rng.Intn(len(ids))]
			detail, ok := o.GetService(id)
			if !ok {
				continue
			}
			switch {
			case detail.State == api.StateDegraded:
				o.RecoverService(id)
			case rng.Intn(3) == 0:
				o.InjectFault(id)
			default:
				o.ScaleService(id, 1+rng.Intn(sc.MaxInstances))
			}
		}
	}

	snapshot := o.Snapshot()
	o.StopMonitoring()
	for _, id := range ids {
		o.TerminateService(id)
	}

	return api.RunReport{
		RunID:      uuid.NewString(),
		StartedAt:  started,
		FinishedAt: time.Now(),
		Services:   snapshot,
		Events:     o.RecentEvents(o.opts.EventLogCap),
		Alerts:     o.RecentAlerts(o.opts.AlertLogCap),
		Counters:   o.Counters(),
	}
}
