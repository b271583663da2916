package api

import "time"

// Public types shared between the simulator core and its consumers.

// State is the lifecycle state of a simulated service.
type State string

const (
	StateProvisioning State = "provisioning"
	StateRunning      State = "running"
	StateScaling      State = "scaling"
	StateDegraded     State = "degraded"
	StateTerminated   State = "terminated"
)

// Severity grades an alert. Fault injections are critical, threshold
// breaches are warnings.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ServiceView is the display projection of a service. Load and throughput
// values are rounded to whole numbers.
type ServiceView struct {
	ID            string  `json:"id"`
	State         State   `json:"state"`
	InstanceCount int     `json:"instance_count"`
	CPULoad       float64 `json:"cpu_load"`
	MemoryLoad    float64 `json:"memory_load"`
	Throughput    float64 `json:"throughput"`
}

// ServiceDetail is the full read-only copy of a service, unrounded.
type ServiceDetail struct {
	ID            string    `json:"id"`
	State         State     `json:"state"`
	InstanceCount int       `json:"instance_count"`
	CPULoad       float64   `json:"cpu_load"`
	MemoryLoad    float64   `json:"memory_load"`
	Throughput    float64   `json:"throughput"`
	ErrorCount    int       `json:"error_count"`
	CreatedAt     time.Time `json:"created_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Event is one entry of the orchestrator event log.
type Event struct {
	Timestamp time.Time `json:"ts"`
	Message   string    `json:"message"`
}

// Alert is one entry of the orchestrator alert log.
type Alert struct {
	Timestamp time.Time `json:"ts"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// Counters are the aggregate command counts. They only ever increase for
// the life of the orchestrator.
type Counters struct {
	Provisioned         int `json:"provisioned"`
	FailedInjections    int `json:"failed_injections"`
	RecoveriesInitiated int `json:"recoveries_initiated"`
}

// RunReport is the archived outcome of one scenario run.
type RunReport struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Services   map[string]ServiceView `json:"services"`
	Events     []Event                `json:"events"`
	Alerts     []Alert                `json:"alerts"`
	Counters   Counters               `json:"counters"`
}
