package engine

import (
	"fmt"
	"math"
	"time"
)

// Engine provides the main interface for mission operations
type Engine interface {
	// Mission state management
	GetState() *MissionState
	SetState(state *MissionState) error
	Reset() *MissionState
	Snapshot() Snapshot
	IsTerminal() bool
	Kind() MissionKind

	// Configuration
	GetConfig() *MissionConfig
	SetConfig(config *MissionConfig) error

	// Commands
	Execute(cmd Command) (Result, error)
	SetParameter(name string, value float64) (Result, error)
	Commit() (Result, error)
	StartScan() (Result, error)
	Claim(index int) (Result, error)
	DismissMessage() (Result, error)
	SubmitAnswer(index int) (Result, error)
	SelectEntity(index int) (Result, error)
	AdjustFrequency(delta int) (Result, error)
	AdjustPower(delta int) (Result, error)
	Apply() (Result, error)
	Tick(deltaMs int64) (Result, error)
	HasTimedWork() bool

	// Events
	Subscribe(l Listener) (unsubscribe func())

	// History
	GetCommandHistory() []CommandRecord
	GetLastCommand() *CommandRecord
}

// MissionEngine implements the Engine interface. It is not safe for
// concurrent use; callers serialise access per mission.
type MissionEngine struct {
	state  *MissionState
	config *MissionConfig
	rng    Random

	listeners    map[int]Listener
	nextListener int

	// events collects what the running command emitted
	events []Event
}

// NewEngine creates a new mission engine, seeding objective generation from
// config.Seed
func NewEngine(config *MissionConfig) (*MissionEngine, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	return NewEngineWithRandom(config, NewRandom(config.Seed))
}

// NewEngineWithRandom creates a new mission engine drawing objectives from rng
func NewEngineWithRandom(config *MissionConfig, rng Random) (*MissionEngine, error) {
	ApplyDefaults(config)
	if err := ValidateMissionConfig(config); err != nil {
		return nil, err
	}
	if rng == nil {
		rng = NewRandom(config.Seed)
	}

	return &MissionEngine{
		config:    config,
		rng:       rng,
		state:     NewMissionState(config, rng),
		listeners: make(map[int]Listener),
	}, nil
}

// GetState returns the current mission state
func (e *MissionEngine) GetState() *MissionState {
	return e.state
}

// SetState sets the mission state (used for persistence loading)
func (e *MissionEngine) SetState(state *MissionState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.Kind != e.config.Kind {
		return fmt.Errorf("%w: state kind %q does not match config kind %q", ErrInvalidConfig, state.Kind, e.config.Kind)
	}
	switch {
	case state.Kind == Alignment && state.Alignment == nil,
		state.Kind == Diagnosis && state.Diagnosis == nil,
		state.Kind == Deployment && state.Deployment == nil:
		return fmt.Errorf("%w: state is missing its %s section", ErrInvalidConfig, state.Kind)
	}
	e.state = state
	return nil
}

// Reset restarts the mission from its config. Deployment objectives are drawn
// again. Cumulative history survives.
func (e *MissionEngine) Reset() *MissionState {
	prevHistory := e.state.History
	prevTotal := e.state.TotalCommands
	prevSeq := e.state.EventSeq

	e.state = NewMissionState(e.config, e.rng)
	e.state.History = prevHistory
	e.state.TotalCommands = prevTotal
	e.state.CurrentCommands = 0
	e.state.EventSeq = prevSeq

	e.notify(e.state.newEvent(EventReset, e.state.Message, nil))
	return e.state
}

// IsTerminal reports whether the mission has finished
func (e *MissionEngine) IsTerminal() bool {
	return e.state.Phase.Terminal()
}

// Kind returns the mission kind
func (e *MissionEngine) Kind() MissionKind {
	return e.config.Kind
}

// GetConfig returns the current mission configuration
func (e *MissionEngine) GetConfig() *MissionConfig {
	return e.config
}

// SetConfig sets a new mission configuration and restarts the mission
func (e *MissionEngine) SetConfig(config *MissionConfig) error {
	ApplyDefaults(config)
	if err := ValidateMissionConfig(config); err != nil {
		return err
	}

	e.config = config
	e.state = NewMissionState(config, e.rng)
	return nil
}

// Subscribe registers l for events. The returned func removes it.
func (e *MissionEngine) Subscribe(l Listener) func() {
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = l
	return func() { delete(e.listeners, id) }
}

func (e *MissionEngine) notify(ev Event) {
	for _, l := range e.listeners {
		l(ev)
	}
}

func (e *MissionEngine) emit(t EventType, message string, data map[string]any) {
	e.events = append(e.events, e.state.newEvent(t, message, data))
}

// GetCommandHistory returns the complete command history
func (e *MissionEngine) GetCommandHistory() []CommandRecord {
	return e.state.History
}

// GetLastCommand returns the last command executed, or nil if none
func (e *MissionEngine) GetLastCommand() *CommandRecord {
	if len(e.state.History) == 0 {
		return nil
	}
	return &e.state.History[len(e.state.History)-1]
}

// Execute runs cmd, records it in the history and then delivers the emitted
// events to subscribers. Events are delivered only after state is final.
func (e *MissionEngine) Execute(cmd Command) (Result, error) {
	e.events = nil
	applied, err := e.dispatch(cmd)

	outcome := OutcomeIgnored
	switch {
	case err != nil:
		outcome = OutcomeRejected
	case applied:
		outcome = OutcomeApplied
	}
	e.record(cmd, outcome, err)

	res := Result{Outcome: outcome, Phase: e.state.Phase, Events: e.events}
	e.events = nil
	for _, ev := range res.Events {
		e.notify(ev)
	}
	return res, err
}

func (e *MissionEngine) record(cmd Command, outcome Outcome, err error) {
	entry := CommandRecord{
		Seq:       e.state.TotalCommands + 1,
		Command:   cmd,
		Outcome:   outcome,
		Phase:     e.state.Phase,
		AtMs:      e.state.NowMs,
		Timestamp: time.Now().Unix(),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	e.state.History = append(e.state.History, entry)
	e.state.TotalCommands++
	e.state.CurrentCommands++
}

func (e *MissionEngine) dispatch(cmd Command) (bool, error) {
	kind, known := commandKinds[cmd.Type]
	if !known {
		return false, fmt.Errorf("%w: unknown command %q", ErrUnsupportedCommand, cmd.Type)
	}
	if kind != "" && kind != e.state.Kind {
		return false, fmt.Errorf("%w: %s is a %s command, mission is %s", ErrUnsupportedCommand, cmd.Type, kind, e.state.Kind)
	}

	switch cmd.Type {
	case CmdSetParameter:
		return e.setParameter(cmd.Name, cmd.Value)
	case CmdCommit:
		return e.commit()
	case CmdStartScan:
		return e.startScan()
	case CmdClaim:
		return e.claim(cmd.Index)
	case CmdDismissMessage:
		return e.dismissMessage()
	case CmdSubmitAnswer:
		return e.submitAnswer(cmd.Index)
	case CmdSelectEntity:
		return e.selectEntity(cmd.Index)
	case CmdAdjustFrequency:
		return e.adjust(cmd.Delta, true)
	case CmdAdjustPower:
		return e.adjust(cmd.Delta, false)
	case CmdApply:
		return e.apply()
	case CmdTick:
		return e.tick(cmd.DeltaMs)
	}
	return false, nil
}

// SetParameter sets an alignment parameter, clamped to its bounds
func (e *MissionEngine) SetParameter(name string, value float64) (Result, error) {
	return e.Execute(Command{Type: CmdSetParameter, Name: name, Value: value})
}

// Commit sends the message when quality reaches the commit threshold
func (e *MissionEngine) Commit() (Result, error) {
	return e.Execute(Command{Type: CmdCommit})
}

// StartScan begins a scan that reveals the anomalies when it completes
func (e *MissionEngine) StartScan() (Result, error) {
	return e.Execute(Command{Type: CmdStartScan})
}

// Claim marks an anomaly as found
func (e *MissionEngine) Claim(index int) (Result, error) {
	return e.Execute(Command{Type: CmdClaim, Index: index})
}

// DismissMessage clears the blocking anomaly message before it times out
func (e *MissionEngine) DismissMessage() (Result, error) {
	return e.Execute(Command{Type: CmdDismissMessage})
}

// SubmitAnswer answers the diagnosis question
func (e *MissionEngine) SubmitAnswer(index int) (Result, error) {
	return e.Execute(Command{Type: CmdSubmitAnswer, Index: index})
}

// SelectEntity loads an entity's values into the edit buffer
func (e *MissionEngine) SelectEntity(index int) (Result, error) {
	return e.Execute(Command{Type: CmdSelectEntity, Index: index})
}

// AdjustFrequency moves the buffer frequency by delta
func (e *MissionEngine) AdjustFrequency(delta int) (Result, error) {
	return e.Execute(Command{Type: CmdAdjustFrequency, Delta: delta})
}

// AdjustPower moves the buffer power by delta
func (e *MissionEngine) AdjustPower(delta int) (Result, error) {
	return e.Execute(Command{Type: CmdAdjustPower, Delta: delta})
}

// Apply configures the selected entity from the buffer
func (e *MissionEngine) Apply() (Result, error) {
	return e.Execute(Command{Type: CmdApply})
}

// Tick advances the logical clock, firing due transitions in deadline order
func (e *MissionEngine) Tick(deltaMs int64) (Result, error) {
	return e.Execute(Command{Type: CmdTick, DeltaMs: deltaMs})
}

// Alignment

func (e *MissionEngine) setParameter(name string, value float64) (bool, error) {
	a := e.state.Alignment
	idx := -1
	for i := range a.Parameters {
		if a.Parameters[i].Name == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
	}
	if math.IsNaN(value) {
		return false, fmt.Errorf("%w: value for %q is NaN", ErrInvalidConfig, name)
	}
	if e.IsTerminal() {
		return false, nil
	}

	p := &a.Parameters[idx]
	v := clampFloat(value, p.Min, p.Max)
	if v == p.Value {
		return false, nil
	}
	p.Value = v

	prev := a.Result.Quality
	if err := e.rescore(); err != nil {
		return false, err
	}
	if a.Result.Quality != prev {
		e.emit(EventQualityChanged, "", map[string]any{
			"quality":    a.Result.Quality,
			"previous":   prev,
			"can_commit": a.Result.Quality >= a.CommitThreshold,
		})
	}
	return true, nil
}

func (e *MissionEngine) rescore() error {
	a := e.state.Alignment
	result, err := Scorer{Tolerance: a.Tolerance, Mode: a.Mode}.Score(a.Parameters)
	if err != nil {
		return err
	}
	a.Result = result
	return nil
}

func (e *MissionEngine) commit() (bool, error) {
	if e.IsTerminal() {
		return false, nil
	}
	a := e.state.Alignment
	if a.Result.Quality < a.CommitThreshold {
		return false, fmt.Errorf("%w: quality %d below threshold %d", ErrInsufficientQuality, a.Result.Quality, a.CommitThreshold)
	}

	a.MessagesSent++
	if a.MessagesSent < a.MessagesRequired {
		if f := e.config.Messages.MessageSent; f != "" {
			e.state.Message = fmt.Sprintf(f, a.MessagesSent, a.MessagesRequired)
		}
		return true, nil
	}

	e.state.Phase = PhaseCompleted
	e.state.cancelAll()
	e.state.Message = e.config.Messages.Completed
	e.emit(EventMissionCompleted, e.state.Message, map[string]any{
		"quality":       a.Result.Quality,
		"messages_sent": a.MessagesSent,
	})
	return true, nil
}

// Diagnosis

func (e *MissionEngine) startScan() (bool, error) {
	d := e.state.Diagnosis
	if e.IsTerminal() || d.Scanning {
		return false, nil
	}
	switch e.state.Phase {
	case PhaseScanning, PhaseRevealed, PhasePartiallyDiscovered:
	default:
		return false, nil
	}

	d.Scanning = true
	e.state.schedule(TransitionScanComplete, e.config.Diagnosis.ScanDurationMs)
	e.emit(EventScanStarted, "", map[string]any{"duration_ms": e.config.Diagnosis.ScanDurationMs})
	return true, nil
}

func (e *MissionEngine) claim(index int) (bool, error) {
	d := e.state.Diagnosis
	if err := d.Tracker.checkIndex(index); err != nil {
		return false, err
	}
	if e.IsTerminal() || !d.Revealed || d.Scanning || d.BlockingMessage != "" {
		return false, nil
	}

	found, err := d.Tracker.Claim(index)
	if err != nil || !found {
		return false, err
	}

	anomaly := d.Tracker.Anomalies[index]
	d.BlockingMessage = anomaly.Message
	e.state.Message = anomaly.Message
	e.state.schedule(TransitionMessageDismissed, e.config.Diagnosis.MessageDurationMs)
	e.emit(EventAnomalyFound, anomaly.Message, map[string]any{
		"index":      index,
		"label":      anomaly.Label,
		"discovered": d.Tracker.Discovered,
		"total":      d.Tracker.Total(),
	})

	if d.Tracker.Complete() {
		e.state.Phase = PhaseFullyDiscovered
		e.state.schedule(TransitionAwaitAnswer, e.config.Diagnosis.RevealDelayMs)
	} else {
		e.state.Phase = PhasePartiallyDiscovered
	}
	return true, nil
}

func (e *MissionEngine) dismissMessage() (bool, error) {
	d := e.state.Diagnosis
	if d.BlockingMessage == "" {
		return false, nil
	}
	e.state.cancel(TransitionMessageDismissed)
	e.clearBlockingMessage()
	return true, nil
}

func (e *MissionEngine) clearBlockingMessage() {
	e.state.Diagnosis.BlockingMessage = ""
	e.emit(EventMessageDismissed, "", nil)
}

func (e *MissionEngine) submitAnswer(index int) (bool, error) {
	d := e.state.Diagnosis
	if index < 0 || index >= len(d.Options) {
		return false, fmt.Errorf("%w: option %d (have %d)", ErrIndexOutOfRange, index, len(d.Options))
	}
	if d.Answered || e.state.Phase != PhaseAwaitingAnswer || index == d.Disabled {
		return false, nil
	}

	d.Answered = true
	d.LastAnswer = index
	correct := index == d.CorrectIndex
	feedback := ""
	if index < len(d.Feedback) {
		feedback = d.Feedback[index]
	}
	e.state.Message = feedback

	e.emit(EventAnswerResult, feedback, map[string]any{
		"index":   index,
		"correct": correct,
	})

	if correct {
		e.state.Phase = PhaseAnsweredCorrect
		e.state.cancelAll()
		if feedback == "" {
			e.state.Message = e.config.Messages.Completed
		}
		e.emit(EventMissionCompleted, e.config.Messages.Completed, map[string]any{
			"wrong_answers":    d.WrongAnswers,
			"advance_after_ms": e.config.Diagnosis.AdvanceDelayMs,
		})
		return true, nil
	}

	d.WrongAnswers++
	d.Disabled = index
	e.state.Phase = PhaseAnsweredIncorrect
	e.state.schedule(TransitionAnswerRetry, e.config.Diagnosis.RetryDelayMs)
	return true, nil
}

// Deployment

func (e *MissionEngine) selectEntity(index int) (bool, error) {
	m := &e.state.Deployment.Matcher
	if index < 0 || index >= len(m.Entities) {
		return false, fmt.Errorf("%w: entity %d (have %d)", ErrIndexOutOfRange, index, len(m.Entities))
	}
	if e.IsTerminal() || index == m.Selected {
		return false, nil
	}
	if err := m.Select(index); err != nil {
		return false, err
	}
	return true, nil
}

func (e *MissionEngine) adjust(delta int, frequency bool) (bool, error) {
	if e.IsTerminal() {
		return false, nil
	}
	m := &e.state.Deployment.Matcher
	if frequency {
		return m.AdjustFrequency(delta), nil
	}
	return m.AdjustPower(delta), nil
}

func (e *MissionEngine) apply() (bool, error) {
	if e.IsTerminal() {
		return false, nil
	}
	dep := e.state.Deployment
	m := &dep.Matcher
	prevQuality := m.Quality

	ent, err := m.Apply()
	if err != nil {
		return false, err
	}

	if f := e.config.Messages.Configured; f != "" {
		e.state.Message = fmt.Sprintf(f, ent.Name)
	}
	e.emit(EventEntityConfigured, e.state.Message, map[string]any{
		"index":      ent.Index,
		"name":       ent.Name,
		"frequency":  ent.AppliedFrequency,
		"power":      ent.AppliedPower,
		"configured": m.ConfiguredCount,
		"total":      len(m.Entities),
	})
	if m.Quality != prevQuality {
		e.emit(EventQualityChanged, "", map[string]any{"quality": m.Quality, "previous": prevQuality})
	}

	if m.Complete() {
		dep.Clock.Stop()
		e.state.Phase = PhaseCompleted
		e.state.cancelAll()
		e.state.Message = e.config.Messages.Completed
		e.emit(EventMissionCompleted, e.state.Message, map[string]any{
			"remaining_ms": dep.Clock.RemainingMs,
			"quality":      m.Quality,
		})
	}
	return true, nil
}

// Time

func (e *MissionEngine) tick(deltaMs int64) (bool, error) {
	if deltaMs < 0 {
		return false, fmt.Errorf("%w: tick delta must not be negative, got %d", ErrInvalidConfig, deltaMs)
	}
	if deltaMs > math.MaxInt64-e.state.NowMs {
		return false, fmt.Errorf("%w: tick delta %d overflows logical time %d", ErrInvalidConfig, deltaMs, e.state.NowMs)
	}
	// Nothing waits on the clock: logical time stays put
	if deltaMs == 0 || !e.HasTimedWork() {
		return false, nil
	}

	target := e.state.NowMs + deltaMs
	for {
		pt, ok := e.state.popDue(target)
		if !ok {
			break
		}
		e.state.NowMs = pt.DueMs
		e.fire(pt)
	}
	e.state.NowMs = target

	if dep := e.state.Deployment; dep != nil && !e.IsTerminal() {
		expired := dep.Clock.Tick(deltaMs)
		if !dep.LowTimeSignaled && dep.Clock.LowTime() {
			dep.LowTimeSignaled = true
			e.emit(EventLowTime, e.config.Messages.LowTime, map[string]any{"remaining_ms": dep.Clock.RemainingMs})
		}
		if expired {
			e.state.Phase = PhaseExpired
			e.state.cancelAll()
			e.state.Message = e.config.Messages.Expired
			e.emit(EventMissionExpired, e.state.Message, map[string]any{
				"configured": dep.Matcher.ConfiguredCount,
				"total":      len(dep.Matcher.Entities),
			})
		}
	}
	return true, nil
}

// HasTimedWork reports whether advancing logical time can change the
// mission: a transition is pending or the countdown is running.
func (e *MissionEngine) HasTimedWork() bool {
	if e.IsTerminal() {
		return false
	}
	if len(e.state.Pending) > 0 {
		return true
	}
	dep := e.state.Deployment
	return dep != nil && dep.Clock.Running
}

// fire applies a transition whose deadline has been reached
func (e *MissionEngine) fire(pt PendingTransition) {
	d := e.state.Diagnosis
	if d == nil {
		return
	}

	switch pt.Kind {
	case TransitionScanComplete:
		d.Scanning = false
		if !d.Revealed {
			d.Revealed = true
			if e.state.Phase == PhaseScanning {
				e.state.Phase = PhaseRevealed
			}
			if m := e.config.Messages.ScanComplete; m != "" {
				e.state.Message = m
			}
		}
		e.emit(EventScanCompleted, "", map[string]any{"anomalies": d.Tracker.Total()})

	case TransitionMessageDismissed:
		e.clearBlockingMessage()

	case TransitionAwaitAnswer:
		if e.state.Phase == PhaseFullyDiscovered {
			e.state.Phase = PhaseAwaitingAnswer
			e.state.Message = d.Question
		}

	case TransitionAnswerRetry:
		if e.state.Phase == PhaseAnsweredIncorrect {
			d.Answered = false
			e.state.Phase = PhaseAwaitingAnswer
			e.state.Message = d.Question
			e.emit(EventAnswerReenabled, "", map[string]any{"disabled": d.Disabled})
		}
	}
}
