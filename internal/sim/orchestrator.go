package sim

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fleetsim/fleetsim/internal/telemetry"
	"github.com/fleetsim/fleetsim/pkg/api"
)

const (
	defaultProvisionDelay = 2000 * time.Millisecond
	defaultScaleDelay     = 1500 * time.Millisecond
	defaultRecoverDelay   = 1000 * time.Millisecond
	defaultTickInterval   = 2000 * time.Millisecond
	defaultEventLogCap    = 100
	defaultAlertLogCap    = 50
	defaultCPUThreshold   = 85
	defaultMemThreshold   = 85
)

// Options configures an Orchestrator. Zero fields fall back to the
// defaults above; a zero Seed picks a time-based one. Thresholds at or
// below zero count as unset, so an alert threshold cannot be configured
// to fire on zero load.
type Options struct {
	ProvisionDelay time.Duration
	ScaleDelay     time.Duration
	RecoverDelay   time.Duration
	TickInterval   time.Duration
	EventLogCap    int
	AlertLogCap    int
	CPUThreshold   float64
	MemThreshold   float64
	Seed           int64
	Logger         zerolog.Logger
	Telemetry      *telemetry.Collector
}

func (o Options) withDefaults() Options {
	if o.ProvisionDelay <= 0 {
		o.ProvisionDelay = defaultProvisionDelay
	}
	if o.ScaleDelay <= 0 {
		o.ScaleDelay = defaultScaleDelay
	}
	if o.RecoverDelay <= 0 {
		o.RecoverDelay = defaultRecoverDelay
	}
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.EventLogCap <= 0 {
		o.EventLogCap = defaultEventLogCap
	}
	if o.AlertLogCap <= 0 {
		o.AlertLogCap = defaultAlertLogCap
	}
	if o.CPUThreshold <= 0 {
		o.CPUThreshold = defaultCPUThreshold
	}
	if o.MemThreshold <= 0 {
		o.MemThreshold = defaultMemThreshold
	}
	return o
}

// Orchestrator owns every simulated service, routes lifecycle commands to
// them, and runs the periodic monitoring tick. One mutex guards the whole
// structure; timer and ticker callbacks serialize through it the same way
// direct commands do.
type Orchestrator struct {
	mu       sync.Mutex
	services map[string]*Service
	order    []string
	events   *ringBuffer[api.Event]
	alerts   *ringBuffer[api.Alert]
	counters api.Counters
	stopTick func()

	opts  Options
	rng   *rand.Rand
	sched *scheduler
	log   zerolog.Logger
	tel   *telemetry.Collector
}

// New builds an orchestrator. Callers own the instance; there is no
// package-level one.
func New(opts Options) *Orchestrator {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Orchestrator{
		services: make(map[string]*Service),
		events:   newRingBuffer[api.Event](opts.EventLogCap),
		alerts:   newRingBuffer[api.Alert](opts.AlertLogCap),
		opts:     opts,
		rng:      rand.New(rand.NewSource(seed)),
		sched:    newScheduler(),
		log:      opts.Logger,
		tel:      opts.Telemetry,
	}
}

// Close stops monitoring and cancels pending delayed transitions.
func (o *Orchestrator) Close() {
	o.StopMonitoring()
	o.sched.Close()
}

// ProvisionService creates a service and schedules its settle into running.
// A second call with the same id is a no-op.
func (o *Orchestrator) ProvisionService(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.services[id]; ok {
		return
	}
	now := time.Now()
	svc := newService(id, now, o.rng)
	o.services[id] = svc
	o.order = append(o.order, id)
	o.counters.Provisioned++
	o.appendEvent(now, fmt.Sprintf("provisioning service %s", id))
	o.log.Info().Str("service", id).Msg("provisioning service")
	if o.tel != nil {
		o.tel.RecordCounter("fleetsim_services_provisioned", 1, nil)
	}
	o.sched.After(o.opts.ProvisionDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		now := time.Now()
		if svc.completeProvisioning(o.rng, now) {
			o.appendEvent(now, fmt.Sprintf("service %s is running", id))
			o.log.Info().Str("service", id).Msg("service running")
		}
	})
}

// GetService returns a read-only copy of the service, or false if the id
// is unknown.
func (o *Orchestrator) GetService(id string) (api.ServiceDetail, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	svc, ok := o.services[id]
	if !ok {
		return api.ServiceDetail{}, false
	}
	return svc.detail(), true
}

// ScaleService logs the intent and forwards to the service. Unknown ids
// and targets below one instance are silently ignored; a service that is
// not running ignores the command itself.
func (o *Orchestrator) ScaleService(id string, instances int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	svc, ok := o.services[id]
	if !ok || instances < 1 {
		return
	}
	o.appendEvent(time.Now(), fmt.Sprintf("scaling service %s to %d instances", id, instances))
	o.log.Info().Str("service", id).Int("instances", instances).Msg("scaling service")
	if !svc.beginScale() {
		return
	}
	o.sched.After(o.opts.ScaleDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		now := time.Now()
		if svc.completeScale(instances, o.rng, now) {
			o.appendEvent(now, fmt.Sprintf("service %s scaled to %d instances", id, instances))
			o.log.Info().Str("service", id).Int("instances", instances).Msg("scale complete")
		}
	})
}

// InjectFault degrades a service, raises a critical alert, and counts the
// injection. Unknown ids are silently ignored.
func (o *Orchestrator) InjectFault(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	svc, ok := o.services[id]
	if !ok {
		return
	}
	svc.injectFault()
	now := time.Now()
	msg := fmt.Sprintf("fault injected into %s", id)
	o.appendEvent(now, msg)
	o.appendAlert(now, msg, api.SeverityCritical)
	o.counters.FailedInjections++
	o.log.Warn().Str("service", id).Msg("fault injected")
	if o.tel != nil {
		o.tel.RecordCounter("fleetsim_faults_injected", 1, nil)
	}
}

// RecoverService schedules a recovery for a degraded service. Anything
// else, including unknown ids, is silently ignored.
func (o *Orchestrator) RecoverService(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	svc, ok := o.services[id]
	if !ok || svc.state != api.StateDegraded {
		return
	}
	o.appendEvent(time.Now(), fmt.Sprintf("recovery initiated for %s", id))
	o.counters.RecoveriesInitiated++
	o.log.Info().Str("service", id).Msg("recovery initiated")
	o.sched.After(o.opts.RecoverDelay, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		now := time.Now()
		if svc.completeRecovery(o.rng, now) {
			o.appendEvent(now, fmt.Sprintf("service %s recovered", id))
			o.log.Info().Str("service", id).Msg("service recovered")
		}
	})
}

// TerminateService terminates a service immediately. The state is
// absorbing; the service stays in the map so its history remains
// queryable.
func (o *Orchestrator) TerminateService(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	svc, ok := o.services[id]
	if !ok {
		return
	}
	svc.terminate()
	o.appendEvent(time.Now(), fmt.Sprintf("service %s terminated", id))
	o.log.Info().Str("service", id).Msg("service terminated")
}

// StartMonitoring begins the periodic tick. Calling it while active is a
// no-op.
func (o *Orchestrator) StartMonitoring() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopTick != nil {
		return
	}
	o.appendEvent(time.Now(), "monitoring started")
	o.log.Info().Dur("interval", o.opts.TickInterval).Msg("monitoring started")
	o.stopTick = o.sched.Every(o.opts.TickInterval, o.monitorTick)
}

// StopMonitoring cancels the periodic tick. Safe to call when not active.
// A tick already waiting on the mutex may land one last refresh after this
// returns.
func (o *Orchestrator) StopMonitoring() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopTick == nil {
		return
	}
	o.stopTick()
	o.stopTick = nil
	o.appendEvent(time.Now(), "monitoring stopped")
	o.log.Info().Msg("monitoring stopped")
}

// MonitoringActive reports whether the periodic tick is running.
func (o *Orchestrator) MonitoringActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopTick != nil
}

// monitorTick refreshes metrics of every running service and raises
// warning alerts for cpu and memory threshold breaches independently.
func (o *Orchestrator) monitorTick() {
	o.mu.Lock()
	defer o.mu.Unlock()
	start := time.Now()
	for _, id := range o.order {
		svc := o.services[id]
		if svc.state != api.StateRunning {
			continue
		}
		svc.updateMetrics(o.rng, start)
		if svc.cpuLoad > o.opts.CPUThreshold {
			o.appendAlert(start, fmt.Sprintf("%s cpu load at %.0f%%", id, math.Round(svc.cpuLoad)), api.SeverityWarning)
			o.log.Warn().Str("service", id).Float64("cpu", svc.cpuLoad).Msg("cpu threshold exceeded")
		}
		if svc.memoryLoad > o.opts.MemThreshold {
			o.appendAlert(start, fmt.Sprintf("%s memory load at %.0f%%", id, math.Round(svc.memoryLoad)), api.SeverityWarning)
			o.log.Warn().Str("service", id).Float64("memory", svc.memoryLoad).Msg("memory threshold exceeded")
		}
	}
	if o.tel != nil {
		o.tel.RecordGauge("fleetsim_services", float64(len(o.services)), nil)
		o.tel.RecordTimer("fleetsim_tick", time.Since(start), nil)
	}
}

// Snapshot returns the display projection of every service, keyed by id.
func (o *Orchestrator) Snapshot() map[string]api.ServiceView {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]api.ServiceView, len(o.services))
	for id, svc := range o.services {
		out[id] = svc.view()
	}
	return out
}

// RecentEvents returns up to k events, newest first.
func (o *Orchestrator) RecentEvents(k int) []api.Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.events.Recent(k)
}

// RecentAlerts returns up to k alerts, newest first.
func (o *Orchestrator) RecentAlerts(k int) []api.Alert {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.alerts.Recent(k)
}

// Counters returns the aggregate command counts.
func (o *Orchestrator) Counters() api.Counters {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.counters
}

func (o *Orchestrator) appendEvent(ts time.Time, msg string) {
	o.events.Append(api.Event{Timestamp: ts, Message: msg})
}

func (o *Orchestrator) appendAlert(ts time.Time, msg string, sev api.Severity) {
	o.alerts.Append(api.Alert{Timestamp: ts, Message: msg, Severity: sev})
}
