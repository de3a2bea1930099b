package browserpool

import "testing"

func TestDefaultResourceMonitorConfig(t *testing.T) {
	cfg := DefaultResourceMonitorConfig()
	if cfg.SafetyReserve <= 0 || cfg.SafetyThreshold <= 0 {
		t.Fatal("expected positive safety reserve and threshold")
	}
}

func TestResourceMonitor_CanAcquirePage_RunsAgainstRealMemory(t *testing.T) {
	m := NewResourceMonitor(DefaultResourceMonitorConfig())
	if _, reason := m.CanAcquirePage(); reason != "" {
		t.Logf("page acquisition gated: %s", reason)
	}
}

func TestResourceMonitor_CanAcquirePage_ZeroThresholdAlwaysAdmits(t *testing.T) {
	m := NewResourceMonitor(ResourceMonitorConfig{SafetyReserve: 0, SafetyThreshold: 0, SampleInterval: 0})
	ok, reason := m.CanAcquirePage()
	if !ok {
		t.Errorf("expected admission with zero thresholds, got reason %q", reason)
	}
}
