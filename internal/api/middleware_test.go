package api

import "testing"

func TestIPLimiterReusedPerIP(t *testing.T) {
	resetIPLimiters()

	first := getIPLimiter("10.0.0.1")
	if second := getIPLimiter("10.0.0.1"); second != first {
		t.Error("same IP handed a fresh limiter")
	}
	if other := getIPLimiter("10.0.0.2"); other == first {
		t.Error("distinct IPs share a limiter")
	}
}

func TestResetIPLimitersDropsState(t *testing.T) {
	resetIPLimiters()

	before := getIPLimiter("10.0.0.3")
	limiterMu.RLock()
	size := len(ipLimiters)
	limiterMu.RUnlock()
	if size != 1 {
		t.Fatalf("map size = %d, want 1", size)
	}

	resetIPLimiters()

	limiterMu.RLock()
	size = len(ipLimiters)
	limiterMu.RUnlock()
	if size != 0 {
		t.Errorf("map size after reset = %d, want 0", size)
	}
	if after := getIPLimiter("10.0.0.3"); after == before {
		t.Error("reset kept the old limiter instance")
	}
}
