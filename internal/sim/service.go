package sim

import (
	"math"
	"math/rand"
	"time"

	"github.com/fleetsim/fleetsim/pkg/api"
)

// Service is one simulated workload. All fields are guarded by the owning
// orchestrator's mutex; nothing outside this package touches them directly.
type Service struct {
	id            string
	state         api.State
	instanceCount int
	cpuLoad       float64
	memoryLoad    float64
	throughput    float64
	errorCount    int
	createdAt     time.Time
	lastHeartbeat time.Time
}

func newService(id string, now time.Time, rng *rand.Rand) *Service {
	return &Service{
		id:            id,
		state:         api.StateProvisioning,
		instanceCount: 1,
		cpuLoad:       40 + rng.Float64()*30,
		memoryLoad:    50 + rng.Float64()*20,
		throughput:    1000 + rng.Float64()*400,
		createdAt:     now,
		lastHeartbeat: now,
	}
}

// completeProvisioning settles the initial delayed transition into running.
// It is a no-op unless the service is still provisioning.
func (s *Service) completeProvisioning(rng *rand.Rand, now time.Time) bool {
	if s.state != api.StateProvisioning {
		return false
	}
	s.state = api.StateRunning
	s.updateMetrics(rng, now)
	return true
}

// beginScale moves a running service into scaling. The instance count only
// changes when the scale completes.
func (s *Service) beginScale() bool {
	if s.state != api.StateRunning {
		return false
	}
	s.state = api.StateScaling
	return true
}

// completeScale settles a pending scale. Spreading load across more
// instances lowers cpu, never below 20.
func (s *Service) completeScale(instances int, rng *rand.Rand, now time.Time) bool {
	if s.state != api.StateScaling {
		return false
	}
	s.state = api.StateRunning
	s.updateMetrics(rng, now)
	s.instanceCount = instances
	s.cpuLoad = clamp(s.cpuLoad-10*float64(instances-1), 20, 100)
	return true
}

// injectFault degrades a running service: one more error, elevated cpu,
// halved throughput.
func (s *Service) injectFault() bool {
	if s.state != api.StateRunning {
		return false
	}
	s.state = api.StateDegraded
	s.errorCount++
	s.cpuLoad = clamp(s.cpuLoad+30, 0, 100)
	s.throughput *= 0.5
	return true
}

// completeRecovery settles a pending recovery. The service stays degraded
// until this fires; the guard makes a late timer harmless after terminate.
func (s *Service) completeRecovery(rng *rand.Rand, now time.Time) bool {
	if s.state != api.StateDegraded {
		return false
	}
	s.state = api.StateRunning
	s.updateMetrics(rng, now)
	s.errorCount = 0
	s.cpuLoad = math.Max(40, s.cpuLoad-20)
	s.throughput = 1000
	return true
}

// terminate is immediate and absorbing. Pending delayed transitions find
// the state changed and no-op when they fire.
func (s *Service) terminate() bool {
	if s.state == api.StateTerminated {
		return false
	}
	s.state = api.StateTerminated
	s.instanceCount = 0
	return true
}

// updateMetrics applies a bounded random walk to the load figures of a
// running service and refreshes the heartbeat. Terminated services are
// frozen entirely.
func (s *Service) updateMetrics(rng *rand.Rand, now time.Time) {
	if s.state == api.StateTerminated {
		return
	}
	s.lastHeartbeat = now
	if s.state != api.StateRunning {
		return
	}
	s.cpuLoad = clamp(s.cpuLoad+(rng.Float64()*10-5), 40, 95)
	s.memoryLoad = clamp(s.memoryLoad+(rng.Float64()*8-4), 50, 95)
	s.throughput = clamp(s.throughput+(rng.Float64()*100-50), 800, 2000)
}

func (s *Service) view() api.ServiceView {
	return api.ServiceView{
		ID:            s.id,
		State:         s.state,
		InstanceCount: s.instanceCount,
		CPULoad:       math.Round(s.cpuLoad),
		MemoryLoad:    math.Round(s.memoryLoad),
		Throughput:    math.Round(s.throughput),
	}
}

func (s *Service) detail() api.ServiceDetail {
	return api.ServiceDetail{
		ID:            s.id,
		State:         s.state,
		InstanceCount: s.instanceCount,
		CPULoad:       s.cpuLoad,
		MemoryLoad:    s.memoryLoad,
		Throughput:    s.throughput,
		ErrorCount:    s.errorCount,
		CreatedAt:     s.createdAt,
		LastHeartbeat: s.lastHeartbeat,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
