package sim

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsim/fleetsim/pkg/api"
)

func testRNG() *rand.Rand { return rand.New(rand.NewSource(1)) }

func runningService(t *testing.T) *Service {
	t.Helper()
	rng := testRNG()
	svc := newService("svc-1", time.Now(), rng)
	require.True(t, svc.completeProvisioning(rng, time.Now()))
	return svc
}

func TestNewServiceStartsProvisioning(t *testing.T) {
	now := time.Now()
	svc := newService("svc-1", now, testRNG())

	assert.Equal(t, api.StateProvisioning, svc.state)
	assert.Equal(t, 1, svc.instanceCount)
	assert.Equal(t, now, svc.createdAt)
	assert.Equal(t, now, svc.lastHeartbeat)
	assert.InDelta(t, 55, svc.cpuLoad, 15)
	assert.InDelta(t, 60, svc.memoryLoad, 10)
	assert.InDelta(t, 1200, svc.throughput, 200)
}

func TestCompleteProvisioningGuard(t *testing.T) {
	rng := testRNG()
	svc := newService("svc-1", time.Now(), rng)

	require.True(t, svc.completeProvisioning(rng, time.Now()))
	assert.Equal(t, api.StateRunning, svc.state)

	// a second settle finds the state changed and does nothing
	assert.False(t, svc.completeProvisioning(rng, time.Now()))
}

func TestInjectFaultEffects(t *testing.T) {
	svc := runningService(t)
	cpu, tput := svc.cpuLoad, svc.throughput

	require.True(t, svc.injectFault())
	assert.Equal(t, api.StateDegraded, svc.state)
	assert.Equal(t, 1, svc.errorCount)
	assert.Equal(t, clamp(cpu+30, 0, 100), svc.cpuLoad)
	assert.Equal(t, tput*0.5, svc.throughput)

	// only running services take faults
	assert.False(t, svc.injectFault())
	assert.Equal(t, 1, svc.errorCount)
}

func TestScaleEffects(t *testing.T) {
	svc := runningService(t)

	require.True(t, svc.beginScale())
	assert.Equal(t, api.StateScaling, svc.state)
	assert.Equal(t, 1, svc.instanceCount)

	rng := testRNG()
	require.True(t, svc.completeScale(4, rng, time.Now()))
	assert.Equal(t, api.StateRunning, svc.state)
	assert.Equal(t, 4, svc.instanceCount)
	assert.GreaterOrEqual(t, svc.cpuLoad, 20.0)
	assert.LessOrEqual(t, svc.cpuLoad, 65.0) // post-refresh max 95, minus 30

	// scale is only accepted while running
	svc.injectFault()
	assert.False(t, svc.beginScale())
}

func TestScaleCompletionGuardedByState(t *testing.T) {
	svc := runningService(t)
	require.True(t, svc.beginScale())
	require.True(t, svc.terminate())

	assert.False(t, svc.completeScale(3, testRNG(), time.Now()))
	assert.Equal(t, api.StateTerminated, svc.state)
	assert.Equal(t, 0, svc.instanceCount)
}

func TestRecoveryEffects(t *testing.T) {
	svc := runningService(t)
	require.True(t, svc.injectFault())

	require.True(t, svc.completeRecovery(testRNG(), time.Now()))
	assert.Equal(t, api.StateRunning, svc.state)
	assert.Equal(t, 0, svc.errorCount)
	assert.Equal(t, 1000.0, svc.throughput)
	assert.GreaterOrEqual(t, svc.cpuLoad, 40.0)

	// recovery only settles from degraded
	assert.False(t, svc.completeRecovery(testRNG(), time.Now()))
}

func TestTerminateIsAbsorbing(t *testing.T) {
	svc := runningService(t)
	hb := svc.lastHeartbeat

	require.True(t, svc.terminate())
	assert.Equal(t, api.StateTerminated, svc.state)
	assert.Equal(t, 0, svc.instanceCount)

	assert.False(t, svc.terminate())
	assert.False(t, svc.injectFault())
	assert.False(t, svc.beginScale())
	assert.False(t, svc.completeRecovery(testRNG(), time.Now()))

	svc.updateMetrics(testRNG(), time.Now().Add(time.Hour))
	assert.Equal(t, hb, svc.lastHeartbeat)
}

func TestUpdateMetricsBounds(t *testing.T) {
	svc := runningService(t)
	rng := testRNG()
	for i := 0; i < 500; i++ {
		svc.updateMetrics(rng, time.Now())
		assert.GreaterOrEqual(t, svc.cpuLoad, 40.0)
		assert.LessOrEqual(t, svc.cpuLoad, 95.0)
		assert.GreaterOrEqual(t, svc.memoryLoad, 50.0)
		assert.LessOrEqual(t, svc.memoryLoad, 95.0)
		assert.GreaterOrEqual(t, svc.throughput, 800.0)
		assert.LessOrEqual(t, svc.throughput, 2000.0)
	}
}

func TestUpdateMetricsHeartbeatOnly(t *testing.T) {
	rng := testRNG()
	svc := newService("svc-1", time.Now(), rng)
	cpu, mem, tput := svc.cpuLoad, svc.memoryLoad, svc.throughput

	later := time.Now().Add(time.Second)
	svc.updateMetrics(rng, later)

	// provisioning services keep their metrics but refresh the heartbeat
	assert.Equal(t, later, svc.lastHeartbeat)
	assert.Equal(t, cpu, svc.cpuLoad)
	assert.Equal(t, mem, svc.memoryLoad)
	assert.Equal(t, tput, svc.throughput)
}

func TestDeterministicWithSameSeed(t *testing.T) {
	rngA, rngB := testRNG(), testRNG()
	now := time.Now()
	a := newService("svc-1", now, rngA)
	b := newService("svc-1", now, rngB)

	a.completeProvisioning(rngA, now)
	b.completeProvisioning(rngB, now)
	for i := 0; i < 20; i++ {
		a.updateMetrics(rngA, now)
		b.updateMetrics(rngB, now)
	}

	assert.Equal(t, a.cpuLoad, b.cpuLoad)
	assert.Equal(t, a.memoryLoad, b.memoryLoad)
	assert.Equal(t, a.throughput, b.throughput)
}
