package engine

import (
	"math"
	"testing"
)

func TestTimeline_OrderAndReplace(t *testing.T) {
	s := &MissionState{}
	s.schedule(TransitionAwaitAnswer, 3000)
	s.schedule(TransitionMessageDismissed, 5500)
	s.schedule(TransitionScanComplete, 1000)

	if len(s.Pending) != 3 {
		t.Fatalf("Expected 3 pending transitions, got %d", len(s.Pending))
	}
	want := []TransitionKind{TransitionScanComplete, TransitionAwaitAnswer, TransitionMessageDismissed}
	for i, k := range want {
		if s.Pending[i].Kind != k {
			t.Errorf("Pending[%d] = %s, want %s", i, s.Pending[i].Kind, k)
		}
	}

	// rescheduling replaces the earlier deadline
	s.NowMs = 500
	s.schedule(TransitionScanComplete, 6000)
	if len(s.Pending) != 3 {
		t.Fatalf("Expected replacement, got %d pending", len(s.Pending))
	}
	if last := s.Pending[2]; last.Kind != TransitionScanComplete || last.DueMs != 6500 {
		t.Errorf("Expected scan_complete due at 6500 last, got %+v", last)
	}
}

func TestTimeline_PopDue(t *testing.T) {
	s := &MissionState{}
	s.schedule(TransitionAnswerRetry, 3000)
	s.schedule(TransitionMessageDismissed, 3000)

	if _, ok := s.popDue(2999); ok {
		t.Fatal("Nothing should be due before 3000")
	}
	first, ok := s.popDue(3000)
	if !ok || first.Kind != TransitionAnswerRetry {
		t.Fatalf("Expected answer_retry first on a tie, got %+v", first)
	}
	second, ok := s.popDue(3000)
	if !ok || second.Kind != TransitionMessageDismissed {
		t.Fatalf("Expected message_dismissed second, got %+v", second)
	}
	if _, ok := s.popDue(10000); ok {
		t.Error("Timeline should be empty")
	}
}

func TestTimeline_Cancel(t *testing.T) {
	s := &MissionState{}
	s.schedule(TransitionScanComplete, 100)
	s.schedule(TransitionAwaitAnswer, 200)

	s.cancel(TransitionScanComplete)
	if s.isPending(TransitionScanComplete) {
		t.Error("scan_complete should be cancelled")
	}
	if !s.isPending(TransitionAwaitAnswer) {
		t.Error("await_answer should still be pending")
	}

	s.cancelAll()
	if len(s.Pending) != 0 {
		t.Errorf("Expected no pending transitions, got %v", s.Pending)
	}
}

func TestTimeline_ScheduleSaturates(t *testing.T) {
	s := &MissionState{NowMs: 1000}
	s.schedule(TransitionScanComplete, math.MaxInt64)

	if due := s.Pending[0].DueMs; due != math.MaxInt64 {
		t.Errorf("Expected deadline saturated at MaxInt64, got %d", due)
	}
	if _, ok := s.popDue(math.MaxInt64 - 1); ok {
		t.Error("A saturated deadline should not be due early")
	}
}
