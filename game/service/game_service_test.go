package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
	"github.com/wricardo/mcp-training/satmissions/game/service"
)

var errMockNotFound = errors.New("session not found")

// MockSessionManager implements service.SessionManager for testing
type MockSessionManager struct {
	sessions map[string]*service.Session
	saves    int
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{
		sessions: make(map[string]*service.Session),
	}
}

func (m *MockSessionManager) Create(id, configID string, config *engine.MissionConfig) (*service.Session, error) {
	// Generate ID if empty (mimics real session manager behavior)
	if id == "" {
		id = fmt.Sprintf("test_%d", len(m.sessions)+1)
	}

	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}

	eng, err := engine.NewEngine(config)
	if err != nil {
		return nil, err
	}

	session := &service.Session{
		ID:             id,
		ConfigID:       configID,
		Engine:         eng,
		Config:         config,
		CreatedAt:      time.Now(),
		LastAccessedAt: time.Now(),
	}

	m.sessions[id] = session
	return session, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	session, exists := m.sessions[id]
	if !exists {
		return nil, errMockNotFound
	}
	return session, nil
}

func (m *MockSessionManager) GetOrCreate(id, configID string, config *engine.MissionConfig) (*service.Session, error) {
	if session, exists := m.sessions[id]; exists {
		return session, nil
	}
	return m.Create(id, configID, config)
}

func (m *MockSessionManager) List() []*service.Session {
	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

func (m *MockSessionManager) Delete(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errMockNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	if session, exists := m.sessions[id]; exists {
		session.LastAccessedAt = time.Now()
		return nil
	}
	return errMockNotFound
}

func (m *MockSessionManager) Save(id string) error {
	if _, exists := m.sessions[id]; !exists {
		return errMockNotFound
	}
	m.saves++
	return nil
}

func (m *MockSessionManager) Count() int {
	return len(m.sessions)
}

// MockConfigManager implements service.ConfigManager for testing
type MockConfigManager struct {
	configs map[string]*engine.MissionConfig
}

func NewMockConfigManager() *MockConfigManager {
	deployment := engine.DefaultMissionConfig(engine.Deployment)
	deployment.Deployment.Objectives = []engine.Objective{{Frequency: 2450, Power: 70}, {Frequency: 2600, Power: 100}}

	return &MockConfigManager{
		configs: map[string]*engine.MissionConfig{
			"alignment":  engine.DefaultMissionConfig(engine.Alignment),
			"diagnosis":  engine.DefaultMissionConfig(engine.Diagnosis),
			"deployment": deployment,
		},
	}
}

func (m *MockConfigManager) LoadConfig(name string) (*engine.MissionConfig, error) {
	config, exists := m.configs[name]
	if !exists {
		return nil, service.ErrConfigNotFound
	}
	return config, nil
}

func (m *MockConfigManager) ListConfigs() ([]*service.ConfigInfo, error) {
	result := make([]*service.ConfigInfo, 0, len(m.configs))
	for name, config := range m.configs {
		result = append(result, &service.ConfigInfo{
			Filename:    name + ".json",
			ConfigID:    name,
			Name:        config.Name,
			Description: config.Description,
			Kind:        config.Kind,
		})
	}
	return result, nil
}

func (m *MockConfigManager) GetDefault() *engine.MissionConfig {
	return m.configs["alignment"]
}

func (m *MockConfigManager) DefaultID() string {
	return "alignment"
}

func (m *MockConfigManager) SaveConfig(name string, config *engine.MissionConfig) error {
	if err := engine.ValidateMissionConfig(config); err != nil {
		return err
	}
	m.configs[name] = config
	return nil
}

// MockNotifier records what the service publishes
type MockNotifier struct {
	mu        sync.Mutex
	events    map[string][]engine.Event
	snapshots map[string]int
	dropped   []string
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		events:    make(map[string][]engine.Event),
		snapshots: make(map[string]int),
	}
}

func (n *MockNotifier) PublishEvent(sessionID string, ev engine.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[sessionID] = append(n.events[sessionID], ev)
}

func (n *MockNotifier) PublishSnapshot(sessionID string, snap engine.Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snapshots[sessionID]++
}

func (n *MockNotifier) DropSession(sessionID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dropped = append(n.dropped, sessionID)
}

func newTestService() (service.GameService, *MockSessionManager, *MockNotifier) {
	sessions := NewMockSessionManager()
	notifier := NewMockNotifier()
	svc := service.NewGameService(sessions, NewMockConfigManager(), service.WithNotifier(notifier))
	return svc, sessions, notifier
}

func TestGameService_CreateSession(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	tests := []struct {
		name       string
		configName string
		wantKind   engine.MissionKind
		wantErr    bool
	}{
		{
			name:       "create with default config",
			configName: "",
			wantKind:   engine.Alignment,
		},
		{
			name:       "create with specific config",
			configName: "deployment",
			wantKind:   engine.Deployment,
		},
		{
			name:       "create with invalid config",
			configName: "nonexistent",
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, err := svc.CreateSession(ctx, tt.configName)
			if (err != nil) != tt.wantErr {
				t.Errorf("CreateSession() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, service.ErrConfigNotFound) {
					t.Errorf("Expected ErrConfigNotFound, got %v", err)
				}
				return
			}
			if session == nil || session.Kind != tt.wantKind {
				t.Errorf("Unexpected session %+v", session)
			}
			if session.ConfigName == "" || session.Snapshot.Phase == "" {
				t.Errorf("Expected config name and snapshot, got %+v", session)
			}
		})
	}
}

func TestGameService_ExecuteAlignment(t *testing.T) {
	ctx := context.Background()
	svc, sessions, notifier := newTestService()

	info, err := svc.CreateSession(ctx, "alignment")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Too far from the targets to commit
	res, err := svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdCommit})
	if !errors.Is(err, engine.ErrInsufficientQuality) {
		t.Fatalf("Expected ErrInsufficientQuality, got %v", err)
	}
	if res == nil || res.Outcome != engine.OutcomeRejected || res.Kind != "insufficient_quality" {
		t.Errorf("Unexpected rejected result %+v", res)
	}

	for name, value := range map[string]float64{"angle": 75, "power": 85, "encoding": 70} {
		res, err := svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdSetParameter, Name: name, Value: value})
		if err != nil || res.Outcome != engine.OutcomeApplied {
			t.Fatalf("set %s: outcome=%v err=%v", name, res, err)
		}
	}

	res, err = svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdCommit})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if res.Phase != engine.PhaseCompleted || !res.Snapshot.Terminal {
		t.Errorf("Expected completed mission, got %s", res.Phase)
	}
	if res.Snapshot.Alignment.Quality != engine.MaxQuality {
		t.Errorf("Expected quality 100, got %d", res.Snapshot.Alignment.Quality)
	}

	if sessions.saves == 0 {
		t.Error("Expected session to be saved after commands")
	}
	if notifier.snapshots[info.ID] != 5 {
		t.Errorf("Expected 5 published snapshots, got %d", notifier.snapshots[info.ID])
	}
	found := false
	for _, ev := range notifier.events[info.ID] {
		if ev.Type == engine.EventMissionCompleted {
			found = true
		}
	}
	if !found {
		t.Error("Expected mission_completed to reach the notifier")
	}
}

func TestGameService_ExecuteErrors(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	info, _ := svc.CreateSession(ctx, "diagnosis")

	if _, err := svc.Execute(ctx, "nonexistent", engine.Command{Type: engine.CmdStartScan}); err == nil {
		t.Error("Expected error for unknown session")
	}

	_, err := svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdApply})
	if !errors.Is(err, engine.ErrUnsupportedCommand) {
		t.Errorf("Expected ErrUnsupportedCommand, got %v", err)
	}

	_, err = svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdClaim, Index: 7})
	if !errors.Is(err, engine.ErrIndexOutOfRange) {
		t.Errorf("Expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestGameService_Batch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	info, err := svc.CreateSession(ctx, "deployment")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// Entity 0 objective is {2450, 70}; neutral buffer is {2400, 50}
	cmds := []engine.Command{
		{Type: engine.CmdSelectEntity, Index: 0},
		{Type: engine.CmdAdjustFrequency, Delta: 25},
		{Type: engine.CmdAdjustFrequency, Delta: 25},
		{Type: engine.CmdAdjustPower, Delta: 20},
		{Type: engine.CmdApply},
		{Type: engine.CmdApply}, // already configured
		{Type: engine.CmdSelectEntity, Index: 1},
	}

	result, err := svc.Batch(ctx, info.ID, cmds, false)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if result.Requested != 7 || result.Executed != 6 {
		t.Errorf("Expected 6 of 7 commands executed, got %d of %d", result.Executed, result.Requested)
	}
	if result.StopReason != "rejected" || result.StoppedOnStep != 6 {
		t.Errorf("Expected stop on step 6, got %s/%d", result.StopReason, result.StoppedOnStep)
	}
	if last := result.Steps[len(result.Steps)-1]; last.Kind != "already_configured" {
		t.Errorf("Expected already_configured on last step, got %+v", last)
	}
	if result.Snapshot.Deployment.ConfiguredCount != 1 {
		t.Errorf("Expected one configured entity, got %d", result.Snapshot.Deployment.ConfiguredCount)
	}
	if len(result.Events) == 0 {
		t.Error("Expected events from the batch")
	}

	// Reset starts over and reports the reset event
	result, err = svc.Batch(ctx, info.ID, []engine.Command{{Type: engine.CmdSelectEntity, Index: 1}}, true)
	if err != nil {
		t.Fatalf("Batch with reset failed: %v", err)
	}
	if result.Snapshot.Deployment.ConfiguredCount != 0 || result.Snapshot.Deployment.Selected != 1 {
		t.Errorf("Expected fresh mission with entity 1 selected, got %+v", result.Snapshot.Deployment)
	}
	if len(result.Events) == 0 || result.Events[0].Type != engine.EventReset {
		t.Errorf("Expected reset event first, got %+v", result.Events)
	}
}

func TestGameService_BatchTruncatesAndStopsWhenTerminal(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	info, _ := svc.CreateSession(ctx, "deployment")

	cmds := make([]engine.Command, engine.MaxBatchCommands+10)
	for i := range cmds {
		cmds[i] = engine.Command{Type: engine.CmdTick, DeltaMs: 1000}
	}
	result, err := svc.Batch(ctx, info.ID, cmds, false)
	if err != nil {
		t.Fatalf("Batch failed: %v", err)
	}
	if !result.Truncated || result.Limit != engine.MaxBatchCommands {
		t.Errorf("Expected truncation to %d, got %+v", engine.MaxBatchCommands, result)
	}
	if result.Executed != engine.MaxBatchCommands {
		t.Errorf("Expected %d executed, got %d", engine.MaxBatchCommands, result.Executed)
	}

	// Run the clock out, then any further command stops the batch
	if _, err := svc.Tick(ctx, info.ID, engine.DefaultClockDurationMs); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	result, _ = svc.Batch(ctx, info.ID, []engine.Command{{Type: engine.CmdSelectEntity, Index: 0}}, false)
	if result.StopReason != "terminal" || result.Executed != 0 {
		t.Errorf("Expected terminal stop, got %+v", result)
	}
	if result.Snapshot.Phase != engine.PhaseExpired {
		t.Errorf("Expected expired phase, got %s", result.Snapshot.Phase)
	}
}

func TestGameService_TickAll(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService()

	running, _ := svc.CreateSession(ctx, "deployment")
	expired, _ := svc.CreateSession(ctx, "deployment")
	idle, _ := svc.CreateSession(ctx, "alignment")

	if _, err := svc.Tick(ctx, expired.ID, engine.DefaultClockDurationMs); err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	published := notifier.snapshots[expired.ID]

	// Finished missions and missions without timed work are skipped
	changed, err := svc.TickAll(ctx, 1000)
	if err != nil {
		t.Fatalf("TickAll failed: %v", err)
	}
	if changed != 1 {
		t.Errorf("Expected 1 changed session, got %d", changed)
	}
	if notifier.snapshots[idle.ID] != 0 {
		t.Error("Sessions without timed work should not publish snapshots")
	}

	snap, _ := svc.GetSnapshot(ctx, running.ID)
	if snap.Deployment.RemainingMs != engine.DefaultClockDurationMs-1000 {
		t.Errorf("Expected clock to advance, remaining %d", snap.Deployment.RemainingMs)
	}
	if notifier.snapshots[expired.ID] != published {
		t.Error("Finished sessions should not publish snapshots")
	}
}

func TestGameService_TickAllLeavesIdleHistoryAlone(t *testing.T) {
	ctx := context.Background()
	svc, sessions, _ := newTestService()

	alignment, _ := svc.CreateSession(ctx, "alignment")
	diagnosis, _ := svc.CreateSession(ctx, "diagnosis")
	saves := sessions.saves

	for i := 0; i < 3600; i++ {
		if _, err := svc.TickAll(ctx, 1000); err != nil {
			t.Fatalf("TickAll failed: %v", err)
		}
	}
	if sessions.saves != saves {
		t.Errorf("Expected no saves for idle sessions, got %d", sessions.saves-saves)
	}
	for _, id := range []string{alignment.ID, diagnosis.ID} {
		history, err := svc.GetCommandHistory(ctx, id, service.HistoryOptions{})
		if err != nil {
			t.Fatalf("GetCommandHistory failed: %v", err)
		}
		if history.TotalCommands != 0 {
			t.Errorf("Session %s: expected empty history, got %d records", id, history.TotalCommands)
		}
	}

	// Once a scan is pending the driver advances the mission
	if _, err := svc.Execute(ctx, diagnosis.ID, engine.Command{Type: engine.CmdStartScan}); err != nil {
		t.Fatalf("start_scan failed: %v", err)
	}
	changed, _ := svc.TickAll(ctx, engine.DefaultScanDurationMs)
	if changed != 1 {
		t.Errorf("Expected the scanning session to change, got %d", changed)
	}
	snap, _ := svc.GetSnapshot(ctx, diagnosis.ID)
	if snap.Phase != engine.PhaseRevealed {
		t.Errorf("Expected revealed phase, got %s", snap.Phase)
	}
	changed, _ = svc.TickAll(ctx, 1000)
	if changed != 0 {
		t.Errorf("Expected no changes once the scan finished, got %d", changed)
	}
}

func TestGameService_Reset(t *testing.T) {
	ctx := context.Background()
	svc, _, notifier := newTestService()

	info, _ := svc.CreateSession(ctx, "diagnosis")
	svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdStartScan})

	snap, err := svc.Reset(ctx, info.ID)
	if err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if snap.Phase != engine.PhaseScanning || snap.Diagnosis.Scanning {
		t.Errorf("Expected fresh scanning phase, got %+v", snap.Diagnosis)
	}
	if snap.TotalCommands != 1 {
		t.Errorf("Expected cumulative history to survive reset, got %d", snap.TotalCommands)
	}

	evs := notifier.events[info.ID]
	if len(evs) == 0 || evs[len(evs)-1].Type != engine.EventReset {
		t.Errorf("Expected reset event to reach the notifier, got %+v", evs)
	}

	if _, err := svc.Reset(ctx, "nonexistent"); err == nil {
		t.Error("Expected error resetting unknown session")
	}
}

func TestGameService_GetCommandHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	info, _ := svc.CreateSession(ctx, "deployment")
	for i := 0; i < 5; i++ {
		svc.Tick(ctx, info.ID, 100)
	}

	tests := []struct {
		name      string
		opts      service.HistoryOptions
		wantCount int
		wantFirst int
		wantNext  bool
	}{
		{"default desc", service.HistoryOptions{}, 5, 5, false},
		{"asc page 1", service.HistoryOptions{Page: 1, Limit: 2, Order: "asc"}, 2, 1, true},
		{"asc page 3", service.HistoryOptions{Page: 3, Limit: 2, Order: "asc"}, 1, 5, false},
		{"desc page 2", service.HistoryOptions{Page: 2, Limit: 2, Order: "desc"}, 2, 3, true},
		{"past the end", service.HistoryOptions{Page: 9, Limit: 2, Order: "asc"}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history, err := svc.GetCommandHistory(ctx, info.ID, tt.opts)
			if err != nil {
				t.Fatalf("GetCommandHistory failed: %v", err)
			}
			if len(history.Commands) != tt.wantCount {
				t.Fatalf("Expected %d commands, got %d", tt.wantCount, len(history.Commands))
			}
			if tt.wantCount > 0 && history.Commands[0].Seq != tt.wantFirst {
				t.Errorf("Expected first seq %d, got %d", tt.wantFirst, history.Commands[0].Seq)
			}
			if history.HasNext != tt.wantNext {
				t.Errorf("Expected HasNext %v, got %v", tt.wantNext, history.HasNext)
			}
			if history.TotalCommands != 5 {
				t.Errorf("Expected 5 total commands, got %d", history.TotalCommands)
			}
		})
	}
}

func TestGameService_SessionLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	a, _ := svc.CreateSession(ctx, "alignment")
	svc.CreateSession(ctx, "diagnosis")

	sessions, err := svc.ListSessions(ctx)
	if err != nil || len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d (%v)", len(sessions), err)
	}

	got, err := svc.GetSession(ctx, a.ID)
	if err != nil || got.ConfigName != "alignment" {
		t.Fatalf("GetSession: %+v %v", got, err)
	}

	if err := svc.DeleteSession(ctx, a.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := svc.GetSession(ctx, a.ID); err == nil {
		t.Error("Expected deleted session to be gone")
	}
	if err := svc.DeleteSession(ctx, a.ID); err == nil {
		t.Error("Expected error deleting twice")
	}
}

func TestGameService_DeleteAndReleaseDropCachedSnapshots(t *testing.T) {
	ctx := context.Background()
	svc, sessions, notifier := newTestService()

	deleted, _ := svc.CreateSession(ctx, "alignment")
	expired, _ := svc.CreateSession(ctx, "alignment")

	if err := svc.DeleteSession(ctx, deleted.ID); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}

	// The session manager drops expired sessions on its own
	sess, _ := sessions.Get(expired.ID)
	delete(sessions.sessions, expired.ID)
	svc.ReleaseSessions(ctx, []*service.Session{sess})

	if len(notifier.dropped) != 2 || notifier.dropped[0] != deleted.ID || notifier.dropped[1] != expired.ID {
		t.Errorf("Expected both sessions dropped, got %v", notifier.dropped)
	}

	// A released engine no longer reaches the notifier
	before := len(notifier.events[expired.ID])
	sess.Engine.SetParameter("angle", 75)
	if got := len(notifier.events[expired.ID]); got != before {
		t.Errorf("Expected no events after release, got %d new", got-before)
	}
}

func TestGameService_SessionInfoHidesTargets(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	config := engine.DefaultMissionConfig(engine.Alignment)
	config.Name = "hidden"
	config.Alignment.Parameters[1].Hidden = true
	if err := svc.SaveConfig(ctx, "hidden", config); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := svc.CreateSession(ctx, "hidden")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	got, _ := svc.GetSession(ctx, info.ID)

	for _, si := range []*service.SessionInfo{info, got} {
		params := si.MissionConfig.Alignment.Parameters
		if params[1].Target != 0 {
			t.Errorf("Hidden target leaked: %v", params[1].Target)
		}
		if params[0].Target != 75 {
			t.Errorf("Visible target should be kept, got %v", params[0].Target)
		}
	}

	// the stored config keeps its targets
	loaded, _ := svc.LoadConfig(ctx, "hidden")
	if loaded.Alignment.Parameters[1].Target != 85 {
		t.Errorf("Redaction changed the stored config: %v", loaded.Alignment.Parameters[1].Target)
	}
}

func TestGameService_Configs(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService()

	configs, err := svc.ListConfigs(ctx)
	if err != nil || len(configs) != 3 {
		t.Fatalf("Expected 3 configs, got %d (%v)", len(configs), err)
	}

	custom := engine.DefaultMissionConfig(engine.Diagnosis)
	custom.Name = "short scan"
	custom.Diagnosis.ScanDurationMs = 500
	if err := svc.SaveConfig(ctx, "short", custom); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	loaded, err := svc.LoadConfig(ctx, "short")
	if err != nil || loaded.Diagnosis.ScanDurationMs != 500 {
		t.Errorf("Unexpected loaded config %+v %v", loaded, err)
	}

	bad := engine.DefaultMissionConfig(engine.Alignment)
	bad.Name = ""
	if err := svc.SaveConfig(ctx, "bad", bad); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestClockDriver(t *testing.T) {
	svc, _, _ := newTestService()
	info, _ := svc.CreateSession(context.Background(), "deployment")

	ctx, cancel := context.WithCancel(context.Background())
	rounds := make(chan int, 16)
	driver := &service.ClockDriver{
		Service:  svc,
		Interval: 5 * time.Millisecond,
		Listener: func(changed int) {
			select {
			case rounds <- changed:
			default:
			}
		},
	}

	done := make(chan error, 1)
	go func() { done <- driver.Run(ctx) }()

	select {
	case changed := <-rounds:
		if changed != 1 {
			t.Errorf("Expected 1 changed session, got %d", changed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("driver never ticked")
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run returned %v", err)
	}

	snap, _ := svc.GetSnapshot(context.Background(), info.ID)
	if snap.Deployment.RemainingMs >= engine.DefaultClockDurationMs {
		t.Error("Expected the driver to advance the clock")
	}
}
