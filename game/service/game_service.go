package service

import (
	"context"
	"time"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

// GameService defines all mission-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, configName string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error
	ReleaseSessions(ctx context.Context, removed []*Session)

	// Mission Operations
	Execute(ctx context.Context, sessionID string, cmd engine.Command) (*CommandResult, error)
	Batch(ctx context.Context, sessionID string, cmds []engine.Command, reset bool) (*BatchResult, error)
	Tick(ctx context.Context, sessionID string, deltaMs int64) (*CommandResult, error)
	TickAll(ctx context.Context, deltaMs int64) (int, error)
	Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error)

	// Mission State
	GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error)
	GetCommandHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error)

	// Configuration
	ListConfigs(ctx context.Context) ([]*ConfigInfo, error)
	LoadConfig(ctx context.Context, configName string) (*engine.MissionConfig, error)
	SaveConfig(ctx context.Context, configName string, config *engine.MissionConfig) error
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id, configID string, config *engine.MissionConfig) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id, configID string, config *engine.MissionConfig) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
	Count() int
}

// ConfigManager handles mission configuration loading
type ConfigManager interface {
	LoadConfig(name string) (*engine.MissionConfig, error)
	ListConfigs() ([]*ConfigInfo, error)
	GetDefault() *engine.MissionConfig
	DefaultID() string
	SaveConfig(name string, config *engine.MissionConfig) error
}

// Notifier receives what a session emitted. The websocket hub implements it.
type Notifier interface {
	PublishEvent(sessionID string, ev engine.Event)
	PublishSnapshot(sessionID string, snap engine.Snapshot)
	DropSession(sessionID string)
}

// Session represents an active mission session
type Session struct {
	ID             string
	ConfigID       string
	Engine         *engine.MissionEngine
	Config         *engine.MissionConfig
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// detach removes the service's event listener from Engine
	detach func()
}
