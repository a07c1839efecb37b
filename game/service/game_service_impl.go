package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
	"github.com/wricardo/mcp-training/satmissions/logging"
	"github.com/wricardo/mcp-training/satmissions/metrics"
)

// ErrConfigNotFound is returned by ConfigManager implementations for unknown
// config names
var ErrConfigNotFound = errors.New("configuration not found")

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	configs  ConfigManager
	notifier Notifier
	metrics  *metrics.Collector
	logger   logging.Logger
	mu       sync.RWMutex
}

// Option configures optional collaborators of the service
type Option func(*gameServiceImpl)

// WithNotifier forwards events and snapshots to n
func WithNotifier(n Notifier) Option {
	return func(s *gameServiceImpl) { s.notifier = n }
}

// WithMetrics records commands and sessions on c
func WithMetrics(c *metrics.Collector) Option {
	return func(s *gameServiceImpl) { s.metrics = c }
}

// WithLogger sets the service logger
func WithLogger(l logging.Logger) Option {
	return func(s *gameServiceImpl) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, configs ConfigManager, opts ...Option) GameService {
	s := &gameServiceImpl{
		sessions: sessions,
		configs:  configs,
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// getConfigID returns the config_id stored with a session, used for consistent API responses
func getConfigID(sess *Session) string {
	if sess.ConfigID != "" {
		return sess.ConfigID
	}
	if sess.Config != nil && sess.Config.Name != "" {
		return sess.Config.Name
	}
	return "default"
}

func sessionInfo(sess *Session) *SessionInfo {
	return &SessionInfo{
		ID:             sess.ID,
		ConfigName:     getConfigID(sess),
		Kind:           sess.Engine.Kind(),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		Snapshot:       sess.Engine.Snapshot(),
		MissionConfig:  sess.Config.Redacted(),
	}
}

// CreateSession creates a new mission session
func (s *gameServiceImpl) CreateSession(ctx context.Context, configName string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Load configuration
	var config *engine.MissionConfig
	var err error
	configID := configName
	if configName != "" {
		config, err = s.configs.LoadConfig(configName)
		if err != nil {
			// Provide helpful error message with available options
			if errors.Is(err, ErrConfigNotFound) {
				availableConfigs, listErr := s.configs.ListConfigs()
				if listErr == nil && len(availableConfigs) > 0 {
					var configIDs []string
					for _, cfg := range availableConfigs {
						configIDs = append(configIDs, cfg.ConfigID)
					}
					return nil, fmt.Errorf("%w: '%s', available configs: %s", ErrConfigNotFound, configName, strings.Join(configIDs, ", "))
				}
				return nil, fmt.Errorf("%w: '%s', use /api/configs to list available configurations", ErrConfigNotFound, configName)
			}
			return nil, fmt.Errorf("failed to load config %s: %w", configName, err)
		}
	} else {
		config = s.configs.GetDefault()
		configID = s.configs.DefaultID()
	}

	// Let session manager generate a proper 4-character ID
	sess, err := s.sessions.Create("", configID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	s.attach(sess)
	s.metrics.SetActiveSessions(s.sessions.Count())
	s.logger.Info(ctx, "session created",
		logging.String("session", sess.ID),
		logging.String("config", configID),
		logging.String("kind", string(config.Kind)))

	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	return sessionInfo(sess), nil
}

// ListSessions returns all active sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, _ := s.sessions.Get(sessionID)
	if err := s.sessions.Delete(sessionID); err != nil {
		return err
	}
	if sess != nil {
		s.release(sess)
	}
	s.metrics.SetActiveSessions(s.sessions.Count())
	s.logger.Info(ctx, "session deleted", logging.String("session", sessionID))
	return nil
}

// ReleaseSessions detaches sessions the session manager already dropped,
// such as expired or orphaned ones, and forgets their cached snapshots
func (s *gameServiceImpl) ReleaseSessions(ctx context.Context, removed []*Session) {
	if len(removed) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range removed {
		s.release(sess)
	}
	s.metrics.SetActiveSessions(s.sessions.Count())
	s.logger.Debug(ctx, "released sessions", logging.Int("count", len(removed)))
}

func (s *gameServiceImpl) release(sess *Session) {
	if sess.detach != nil {
		sess.detach()
		sess.detach = nil
	}
	if s.notifier != nil {
		s.notifier.DropSession(sess.ID)
	}
}

// Execute runs one command against a session. A rejected command returns
// both the result and the engine error.
func (s *gameServiceImpl) Execute(ctx context.Context, sessionID string, cmd engine.Command) (*CommandResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.run(ctx, sess, cmd)
	s.persist(ctx, sess)
	s.publishSnapshot(sess, result.Snapshot)
	return result, err
}

// Batch executes commands in order, stopping at the first rejected command
// or once the mission is over
func (s *gameServiceImpl) Batch(ctx context.Context, sessionID string, cmds []engine.Command, reset bool) (*BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{
		Requested: len(cmds),
		Steps:     make([]BatchStep, 0, len(cmds)),
	}

	// Collect everything the engine emits, including the reset event
	var events []engine.Event
	unsubscribe := sess.Engine.Subscribe(func(ev engine.Event) {
		events = append(events, ev)
	})
	defer unsubscribe()

	if reset {
		sess.Engine.Reset()
	}

	// Limit commands to prevent abuse
	if len(cmds) > engine.MaxBatchCommands {
		result.Truncated = true
		result.Limit = engine.MaxBatchCommands
		cmds = cmds[:engine.MaxBatchCommands]
	}

	for i, cmd := range cmds {
		if sess.Engine.IsTerminal() {
			result.StopReason = "terminal"
			result.StoppedOnStep = i + 1
			break
		}

		res, err := s.run(ctx, sess, cmd)
		result.Executed++
		if res.Outcome == engine.OutcomeApplied {
			result.Applied++
		}
		result.Steps = append(result.Steps, BatchStep{
			Idx:     i + 1,
			Command: cmd.String(),
			Outcome: res.Outcome,
			Phase:   res.Phase,
			Error:   res.Error,
			Kind:    res.Kind,
		})
		if err != nil {
			result.StopReason = "rejected"
			result.StoppedOnStep = i + 1
			break
		}
	}

	if events == nil {
		events = []engine.Event{}
	}
	result.Events = events
	result.Snapshot = sess.Engine.Snapshot()

	s.persist(ctx, sess)
	s.publishSnapshot(sess, result.Snapshot)
	return result, nil
}

// Tick advances a session's logical clock
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, deltaMs int64) (*CommandResult, error) {
	return s.Execute(ctx, sessionID, engine.Command{Type: engine.CmdTick, DeltaMs: deltaMs})
}

// TickAll advances every mission waiting on the clock by deltaMs. It returns
// how many sessions changed. Missions with nothing pending are skipped so
// their history stays free of driver ticks. Last-access times are left alone
// so idle sessions still expire.
func (s *gameServiceImpl) TickAll(ctx context.Context, deltaMs int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs error
	changed := 0
	for _, sess := range s.sessions.List() {
		if !sess.Engine.HasTimedWork() {
			continue
		}
		s.attach(sess)
		result, err := s.run(ctx, sess, engine.Command{Type: engine.CmdTick, DeltaMs: deltaMs})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}
		if result.Outcome != engine.OutcomeApplied {
			continue
		}
		changed++
		s.persist(ctx, sess)
		s.publishSnapshot(sess, result.Snapshot)
	}
	return changed, errs
}

// Reset restarts a mission from its config
func (s *gameServiceImpl) Reset(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.Engine.Reset()
	snap := sess.Engine.Snapshot()

	s.persist(ctx, sess)
	s.publishSnapshot(sess, snap)
	return &snap, nil
}

// GetSnapshot retrieves the current mission view
func (s *gameServiceImpl) GetSnapshot(ctx context.Context, sessionID string) (*engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	s.sessions.UpdateLastAccessed(sessionID)
	snap := sess.Engine.Snapshot()
	return &snap, nil
}

// GetCommandHistory returns paginated command history
func (s *gameServiceImpl) GetCommandHistory(ctx context.Context, sessionID string, opts HistoryOptions) (*HistoryResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}

	history := sess.Engine.GetCommandHistory()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	// Calculate pagination
	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var commands []engine.CommandRecord
	if opts.Order == "desc" {
		// Most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			commands = append(commands, history[i])
		}
	} else if start < total {
		commands = append(commands, history[start:end]...)
	}

	if commands == nil {
		commands = []engine.CommandRecord{}
	}

	return &HistoryResponse{
		Commands:      commands,
		TotalCommands: total,
		Page:          opts.Page,
		PageSize:      opts.Limit,
		TotalPages:    totalPages,
		HasNext:       opts.Page < totalPages,
		HasPrevious:   opts.Page > 1,
	}, nil
}

// ListConfigs returns available mission configurations
func (s *gameServiceImpl) ListConfigs(ctx context.Context) ([]*ConfigInfo, error) {
	return s.configs.ListConfigs()
}

// LoadConfig loads a specific mission configuration
func (s *gameServiceImpl) LoadConfig(ctx context.Context, configName string) (*engine.MissionConfig, error) {
	return s.configs.LoadConfig(configName)
}

// SaveConfig saves a mission configuration to disk
func (s *gameServiceImpl) SaveConfig(ctx context.Context, configName string, config *engine.MissionConfig) error {
	if err := s.configs.SaveConfig(configName, config); err != nil {
		return err
	}
	s.logger.Info(ctx, "config saved", logging.String("config", configName))
	return nil
}

// session looks up a session for a mutating call. Callers hold s.mu.
func (s *gameServiceImpl) session(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session not found: %w", err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	s.attach(sess)
	return sess, nil
}

// attach subscribes the notifier to a session's engine once
func (s *gameServiceImpl) attach(sess *Session) {
	if s.notifier == nil || sess.detach != nil {
		return
	}
	id := sess.ID
	sess.detach = sess.Engine.Subscribe(func(ev engine.Event) {
		s.notifier.PublishEvent(id, ev)
	})
}

func (s *gameServiceImpl) run(ctx context.Context, sess *Session, cmd engine.Command) (*CommandResult, error) {
	wasTerminal := sess.Engine.IsTerminal()
	res, err := sess.Engine.Execute(cmd)

	kind := string(sess.Engine.Kind())
	s.metrics.ObserveCommand(kind, string(cmd.Type), string(res.Outcome))
	if !wasTerminal && res.Phase.Terminal() {
		s.metrics.ObserveFinished(kind, string(res.Phase))
		s.logger.Info(ctx, "mission finished",
			logging.String("session", sess.ID),
			logging.String("phase", string(res.Phase)))
	}

	events := res.Events
	if events == nil {
		events = []engine.Event{}
	}
	result := &CommandResult{
		Command:  cmd,
		Outcome:  res.Outcome,
		Phase:    res.Phase,
		Events:   events,
		Snapshot: sess.Engine.Snapshot(),
	}
	if err != nil {
		result.Error = err.Error()
		result.Kind = engine.ErrorKind(err)
		s.logger.Debug(ctx, "command rejected",
			logging.String("session", sess.ID),
			logging.String("command", cmd.String()),
			logging.Err(err))
		return result, err
	}
	return result, nil
}

func (s *gameServiceImpl) persist(ctx context.Context, sess *Session) {
	if err := s.sessions.Save(sess.ID); err != nil {
		s.logger.Warn(ctx, "failed to persist session",
			logging.String("session", sess.ID),
			logging.Err(err))
	}
}

func (s *gameServiceImpl) publishSnapshot(sess *Session, snap engine.Snapshot) {
	if s.notifier == nil {
		return
	}
	s.notifier.PublishSnapshot(sess.ID, snap)
}
