package browserpool

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/mem"
)

// ResourceMonitorConfig tunes the memory gate a ResourceMonitor enforces.
type ResourceMonitorConfig struct {
	// SafetyReserve is memory (bytes) that must always stay free, on top of
	// SafetyThreshold, before a new page is admitted.
	SafetyReserve int64
	// SafetyThreshold is the minimum headroom (bytes) required to acquire a
	// new page.
	SafetyThreshold int64
	// SampleInterval bounds how often AvailableMemory re-queries the OS;
	// calls within the interval reuse the last sample.
	SampleInterval time.Duration
}

// DefaultResourceMonitorConfig reserves 512MB and requires 300MB of
// headroom above that before admitting a new page.
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserve:   512 * 1024 * 1024,
		SafetyThreshold: 300 * 1024 * 1024,
		SampleInterval:  time.Second,
	}
}

// ResourceMonitor implements MemoryMonitor by sampling system memory via
// gopsutil and gating page acquisition on available headroom. A single
// browser process holds many pages at once, so this gates admission of the
// next page rather than sizing a tab pool.
type ResourceMonitor struct {
	cfg ResourceMonitorConfig

	mu         sync.Mutex
	lastSample time.Time
	lastAvail  int64
	sampleErr  error
}

// NewResourceMonitor constructs a ResourceMonitor. Sampling is lazy: the
// first CanAcquirePage call triggers the first gopsutil query.
func NewResourceMonitor(cfg ResourceMonitorConfig) *ResourceMonitor {
	return &ResourceMonitor{cfg: cfg}
}

// CanAcquirePage reports whether available system memory, net of the
// configured reserve, clears the safety threshold.
func (m *ResourceMonitor) CanAcquirePage() (bool, string) {
	avail, err := m.availableMemory()
	if err != nil {
		log.Warn().Err(err).Msg("resource monitor: memory sample failed, admitting page")
		return true, ""
	}

	headroom := avail - m.cfg.SafetyReserve
	if headroom < m.cfg.SafetyThreshold {
		return false, "available memory below safety threshold"
	}
	return true, ""
}

// availableMemory returns system-available bytes, caching the gopsutil
// sample for SampleInterval to avoid querying /proc on every page
// acquisition.
func (m *ResourceMonitor) availableMemory() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.lastSample.IsZero() && time.Since(m.lastSample) < m.cfg.SampleInterval {
		return m.lastAvail, m.sampleErr
	}

	vm, err := mem.VirtualMemory()
	m.lastSample = time.Now()
	if err != nil {
		m.sampleErr = err
		return 0, err
	}
	m.lastAvail = int64(vm.Available)
	m.sampleErr = nil
	return m.lastAvail, nil
}
