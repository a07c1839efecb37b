package engine

import "github.com/google/uuid"

// EventType names something the presentation layer may react to
type EventType string

const (
	EventQualityChanged   EventType = "quality_changed"
	EventAnomalyFound     EventType = "anomaly_found"
	EventMissionCompleted EventType = "mission_completed"
	EventMissionExpired   EventType = "mission_expired"
	EventAnswerResult     EventType = "answer_result"

	EventScanStarted      EventType = "scan_started"
	EventScanCompleted    EventType = "scan_completed"
	EventMessageDismissed EventType = "message_dismissed"
	EventAnswerReenabled  EventType = "answer_reenabled"
	EventEntityConfigured EventType = "entity_configured"
	EventLowTime          EventType = "low_time"
	EventReset            EventType = "reset"
)

// Event is emitted after the command that caused it has finished mutating state
type Event struct {
	ID      string         `json:"id"`
	Seq     int64          `json:"seq"`
	Type    EventType      `json:"type"`
	AtMs    int64          `json:"at_ms"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Listener receives events synchronously once a command returns its state
type Listener func(Event)

// newEvent stamps an event with the next sequence number and the logical time
func (s *MissionState) newEvent(t EventType, message string, data map[string]any) Event {
	s.EventSeq++
	return Event{
		ID:      uuid.NewString(),
		Seq:     s.EventSeq,
		Type:    t,
		AtMs:    s.NowMs,
		Message: message,
		Data:    data,
	}
}
