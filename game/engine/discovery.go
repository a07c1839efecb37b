package engine

import "fmt"

// DiscoveryTracker tracks a fixed set of anomalies that can each be claimed once
type DiscoveryTracker struct {
	Anomalies  []Anomaly `json:"anomalies"`
	Discovered int       `json:"discovered"`
}

// NewDiscoveryTracker creates a tracker with every anomaly unfound
func NewDiscoveryTracker(anomalies []AnomalyConfig) *DiscoveryTracker {
	t := &DiscoveryTracker{Anomalies: make([]Anomaly, len(anomalies))}
	for i, a := range anomalies {
		t.Anomalies[i] = Anomaly{Index: i, Label: a.Label, Message: a.Message}
	}
	return t
}

// Claim marks anomaly i found. It reports false without changing anything
// when the anomaly was already found.
func (t *DiscoveryTracker) Claim(i int) (bool, error) {
	if err := t.checkIndex(i); err != nil {
		return false, err
	}
	if t.Anomalies[i].Found {
		return false, nil
	}
	t.Anomalies[i].Found = true
	t.Discovered++
	return true, nil
}

// Total returns the number of anomalies
func (t *DiscoveryTracker) Total() int {
	return len(t.Anomalies)
}

// Complete reports whether every anomaly has been found
func (t *DiscoveryTracker) Complete() bool {
	return len(t.Anomalies) > 0 && t.Discovered == len(t.Anomalies)
}

// Remaining returns the indices of anomalies not yet found
func (t *DiscoveryTracker) Remaining() []int {
	var idx []int
	for _, a := range t.Anomalies {
		if !a.Found {
			idx = append(idx, a.Index)
		}
	}
	return idx
}

func (t *DiscoveryTracker) checkIndex(i int) error {
	if i < 0 || i >= len(t.Anomalies) {
		return fmt.Errorf("%w: anomaly %d (have %d)", ErrIndexOutOfRange, i, len(t.Anomalies))
	}
	return nil
}
