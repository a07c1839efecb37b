package engine

import "math"

// TransitionKind names a delayed transition waiting on the logical clock
type TransitionKind string

const (
	TransitionScanComplete     TransitionKind = "scan_complete"
	TransitionMessageDismissed TransitionKind = "message_dismissed"
	TransitionAwaitAnswer      TransitionKind = "await_answer"
	TransitionAnswerRetry      TransitionKind = "answer_retry"
)

// PendingTransition is a one-shot transition that fires once NowMs reaches DueMs
type PendingTransition struct {
	Kind  TransitionKind `json:"kind"`
	DueMs int64          `json:"due_ms"`
}

// schedule queues kind to fire delayMs from now, replacing any pending
// transition of the same kind. Pending stays ordered by deadline, ties in
// scheduling order. Deadlines past the end of logical time saturate.
func (s *MissionState) schedule(kind TransitionKind, delayMs int64) {
	s.cancel(kind)
	if delayMs < 0 {
		delayMs = 0
	}
	due := int64(math.MaxInt64)
	if delayMs <= math.MaxInt64-s.NowMs {
		due = s.NowMs + delayMs
	}
	pt := PendingTransition{Kind: kind, DueMs: due}

	i := len(s.Pending)
	for j, existing := range s.Pending {
		if pt.DueMs < existing.DueMs {
			i = j
			break
		}
	}
	s.Pending = append(s.Pending, PendingTransition{})
	copy(s.Pending[i+1:], s.Pending[i:])
	s.Pending[i] = pt
}

// cancel drops a pending transition of the given kind
func (s *MissionState) cancel(kind TransitionKind) {
	kept := s.Pending[:0]
	for _, pt := range s.Pending {
		if pt.Kind != kind {
			kept = append(kept, pt)
		}
	}
	s.Pending = kept
}

// cancelAll drops every pending transition
func (s *MissionState) cancelAll() {
	s.Pending = nil
}

// isPending reports whether a transition of the given kind is queued
func (s *MissionState) isPending(kind TransitionKind) bool {
	for _, pt := range s.Pending {
		if pt.Kind == kind {
			return true
		}
	}
	return false
}

// popDue removes and returns the earliest transition due at or before untilMs
func (s *MissionState) popDue(untilMs int64) (PendingTransition, bool) {
	if len(s.Pending) == 0 || s.Pending[0].DueMs > untilMs {
		return PendingTransition{}, false
	}
	pt := s.Pending[0]
	s.Pending = append(s.Pending[:0], s.Pending[1:]...)
	return pt, true
}
