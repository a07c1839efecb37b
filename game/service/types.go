package service

import (
	"time"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

// SessionInfo provides information about a mission session
type SessionInfo struct {
	ID             string                `json:"id"`
	ConfigName     string                `json:"config_name"`
	Kind           engine.MissionKind    `json:"kind"`
	CreatedAt      time.Time             `json:"created_at"`
	LastAccessedAt time.Time             `json:"last_accessed_at"`
	Snapshot       engine.Snapshot       `json:"snapshot"`
	MissionConfig  *engine.MissionConfig `json:"mission_config,omitempty"` // hidden targets redacted
}

// CommandResult contains the result of a single command
type CommandResult struct {
	Command  engine.Command  `json:"command"`
	Outcome  engine.Outcome  `json:"outcome"`
	Phase    engine.Phase    `json:"phase"`
	Events   []engine.Event  `json:"events"`
	Snapshot engine.Snapshot `json:"snapshot"`
	Error    string          `json:"error,omitempty"`
	Kind     string          `json:"kind,omitempty"` // error kind, see engine.ErrorKind
}

// BatchResult contains the result of several commands run in order
type BatchResult struct {
	Requested int  `json:"requested"`
	Executed  int  `json:"executed"`
	Applied   int  `json:"applied"`
	Truncated bool `json:"truncated,omitempty"`
	Limit     int  `json:"limit,omitempty"`

	// StopReason is one of: rejected, terminal
	StopReason    string `json:"stop_reason,omitempty"`
	StoppedOnStep int    `json:"stopped_on_step,omitempty"` // 1-based

	Steps    []BatchStep     `json:"steps"`
	Events   []engine.Event  `json:"events"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// BatchStep is the compact record of one command in a batch
type BatchStep struct {
	Idx     int            `json:"idx"`
	Command string         `json:"command"`
	Outcome engine.Outcome `json:"outcome"`
	Phase   engine.Phase   `json:"phase"`
	Error   string         `json:"error,omitempty"`
	Kind    string         `json:"kind,omitempty"`
}

// HistoryOptions configures command history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated command history
type HistoryResponse struct {
	Commands      []engine.CommandRecord `json:"commands"`
	TotalCommands int                    `json:"total_commands"`
	Page          int                    `json:"page"`
	PageSize      int                    `json:"page_size"`
	TotalPages    int                    `json:"total_pages"`
	HasNext       bool                   `json:"has_next"`
	HasPrevious   bool                   `json:"has_previous"`
}

// ConfigInfo provides information about a mission configuration
type ConfigInfo struct {
	Filename    string             `json:"filename"`
	ConfigID    string             `json:"config_id"` // The identifier to use for session creation
	Name        string             `json:"name"`      // Display name
	Description string             `json:"description"`
	Kind        engine.MissionKind `json:"kind"`
}
