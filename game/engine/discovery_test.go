package engine

import (
	"errors"
	"testing"
)

func testAnomalies(n int) []AnomalyConfig {
	out := make([]AnomalyConfig, n)
	for i := range out {
		out[i] = AnomalyConfig{Label: string(rune('A' + i)), Message: "fault " + string(rune('A'+i))}
	}
	return out
}

func TestDiscoveryTracker_ClaimIsIdempotent(t *testing.T) {
	tr := NewDiscoveryTracker(testAnomalies(3))

	found, err := tr.Claim(1)
	if err != nil || !found {
		t.Fatalf("Expected first claim to succeed, got %v, %v", found, err)
	}
	found, err = tr.Claim(1)
	if err != nil || found {
		t.Fatalf("Expected second claim to be a no-op, got %v, %v", found, err)
	}
	if tr.Discovered != 1 {
		t.Errorf("Expected 1 discovered, got %d", tr.Discovered)
	}
	if rem := tr.Remaining(); len(rem) != 2 || rem[0] != 0 || rem[1] != 2 {
		t.Errorf("Expected remaining [0 2], got %v", rem)
	}
}

func TestDiscoveryTracker_Complete(t *testing.T) {
	tr := NewDiscoveryTracker(testAnomalies(3))
	for i := 0; i < 3; i++ {
		if tr.Complete() {
			t.Fatalf("Tracker complete after %d claims", i)
		}
		tr.Claim(i)
	}
	if !tr.Complete() {
		t.Error("Expected tracker to be complete")
	}
}

func TestDiscoveryTracker_OutOfRange(t *testing.T) {
	tr := NewDiscoveryTracker(testAnomalies(3))
	for _, i := range []int{-1, 3, 42} {
		if _, err := tr.Claim(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Claim(%d): expected ErrIndexOutOfRange, got %v", i, err)
		}
	}
	if tr.Discovered != 0 {
		t.Errorf("Out-of-range claims changed the count: %d", tr.Discovered)
	}
}
