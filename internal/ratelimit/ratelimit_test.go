package ratelimit

import (
	"testing"
	"time"
)

func TestKeyStableWithinWindow(t *testing.T) {
	base := time.Unix(1700000000, 0)
	window := time.Minute

	k1 := Key("send_message", "10.0.0.1", base, window)
	k2 := Key("send_message", "10.0.0.1", base.Add(30*time.Second), window)

	if k1 != k2 {
		t.Errorf("Keys within one window should match: %s vs %s", k1, k2)
	}
}

func TestKeyRotatesAcrossWindows(t *testing.T) {
	base := time.Unix(1700000040, 0)
	window := time.Minute

	k1 := Key("auth", "10.0.0.1", base, window)
	k2 := Key("auth", "10.0.0.1", base.Add(window), window)

	if k1 == k2 {
		t.Error("Keys across windows should differ")
	}
}

func TestKeySeparatesEndpointsAndCallers(t *testing.T) {
	now := time.Unix(1700000000, 0)
	window := time.Minute

	if Key("auth", "a", now, window) == Key("info", "a", now, window) {
		t.Error("Different endpoints should not share a counter")
	}
	if Key("auth", "a", now, window) == Key("auth", "b", now, window) {
		t.Error("Different callers should not share a counter")
	}
}
