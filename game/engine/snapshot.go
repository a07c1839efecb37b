package engine

// Snapshot is a read-only view of the mission for the presentation layer.
// Hidden targets and undiscovered details are left out.
type Snapshot struct {
	ConfigName    string              `json:"config_name"`
	Kind          MissionKind         `json:"kind"`
	Phase         Phase               `json:"phase"`
	Terminal      bool                `json:"terminal"`
	NowMs         int64               `json:"now_ms"`
	Message       string              `json:"message"`
	Pending       []PendingTransition `json:"pending,omitempty"`
	Commands      []CommandType       `json:"commands"`
	TotalCommands int                 `json:"total_commands"`

	Alignment  *AlignmentView  `json:"alignment,omitempty"`
	Diagnosis  *DiagnosisView  `json:"diagnosis,omitempty"`
	Deployment *DeploymentView `json:"deployment,omitempty"`
}

// ParameterView is a parameter as the player sees it
type ParameterView struct {
	Name            string   `json:"name"`
	Min             float64  `json:"min"`
	Max             float64  `json:"max"`
	Value           float64  `json:"value"`
	Target          *float64 `json:"target,omitempty"`
	Diff            *float64 `json:"diff,omitempty"`
	Score           float64  `json:"score"`
	WithinTolerance bool     `json:"within_tolerance"`
}

// AlignmentView shows parameter scores and whether a commit would succeed
type AlignmentView struct {
	Parameters       []ParameterView `json:"parameters"`
	Tolerance        float64         `json:"tolerance"`
	Quality          int             `json:"quality"`
	CommitThreshold  int             `json:"commit_threshold"`
	CanCommit        bool            `json:"can_commit"`
	Failing          []string        `json:"failing,omitempty"`
	MessagesSent     int             `json:"messages_sent"`
	MessagesRequired int             `json:"messages_required"`
}

// AnomalyView is one anomaly. Label is empty until the scan completes and
// Message until the anomaly is claimed.
type AnomalyView struct {
	Index   int    `json:"index"`
	Label   string `json:"label,omitempty"`
	Visible bool   `json:"visible"`
	Found   bool   `json:"found"`
	Message string `json:"message,omitempty"`
}

// DiagnosisView shows discovery progress and, once every anomaly is found,
// the question with its answer state
type DiagnosisView struct {
	Anomalies       []AnomalyView `json:"anomalies"`
	Discovered      int           `json:"discovered"`
	Total           int           `json:"total"`
	Scanning        bool          `json:"scanning"`
	Revealed        bool          `json:"revealed"`
	BlockingMessage string        `json:"blocking_message,omitempty"`
	ClaimEnabled    bool          `json:"claim_enabled"`

	Question       string   `json:"question,omitempty"`
	Options        []string `json:"options,omitempty"`
	AnswerEnabled  bool     `json:"answer_enabled"`
	Disabled       int      `json:"disabled"`
	LastAnswer     int      `json:"last_answer"`
	WrongAnswers   int      `json:"wrong_answers"`
	AdvanceAfterMs int64    `json:"advance_after_ms,omitempty"`
}

// EntityView is one satellite of a deployment mission
type EntityView struct {
	Index            int    `json:"index"`
	Name             string `json:"name"`
	Configured       bool   `json:"configured"`
	AppliedFrequency int    `json:"applied_frequency,omitempty"`
	AppliedPower     int    `json:"applied_power,omitempty"`
}

// DeploymentView shows the satellites and the countdown. Buffer holds the
// selected entity's unapplied values.
type DeploymentView struct {
	Entities        []EntityView `json:"entities"`
	Selected        int          `json:"selected"`
	Objective       *Objective   `json:"objective,omitempty"` // of the selected entity
	Buffer          Objective    `json:"buffer"`
	Interference    float64      `json:"interference"`
	ConfiguredCount int          `json:"configured_count"`
	Total           int          `json:"total"`
	NetworkQuality  int          `json:"network_quality"`
	FrequencyStep   int          `json:"frequency_step"`
	PowerStep       int          `json:"power_step"`

	RemainingMs int64  `json:"remaining_ms"`
	Remaining   string `json:"remaining"`
	DurationMs  int64  `json:"duration_ms"`
	Running     bool   `json:"running"`
	LowTime     bool   `json:"low_time"`
	Expired     bool   `json:"expired"`

	// Decision aids
	TimeRisk       string   `json:"time_risk"`
	StepsRemaining int      `json:"steps_remaining"`
	Hint           *Command `json:"hint,omitempty"`
}

// Snapshot builds the current view. It never mutates state.
func (e *MissionEngine) Snapshot() Snapshot {
	s := e.state
	snap := Snapshot{
		ConfigName:    s.ConfigName,
		Kind:          s.Kind,
		Phase:         s.Phase,
		Terminal:      s.Phase.Terminal(),
		NowMs:         s.NowMs,
		Message:       s.Message,
		Pending:       append([]PendingTransition(nil), s.Pending...),
		Commands:      CommandsFor(s.Kind),
		TotalCommands: s.TotalCommands,
	}

	switch {
	case s.Alignment != nil:
		snap.Alignment = alignmentView(s.Alignment)
	case s.Diagnosis != nil:
		snap.Diagnosis = e.diagnosisView(s)
	case s.Deployment != nil:
		snap.Deployment = e.deploymentView(s.Deployment)
	}
	return snap
}

func alignmentView(a *AlignmentState) *AlignmentView {
	view := &AlignmentView{
		Parameters:       make([]ParameterView, len(a.Parameters)),
		Tolerance:        a.Tolerance,
		CommitThreshold:  a.CommitThreshold,
		MessagesSent:     a.MessagesSent,
		MessagesRequired: a.MessagesRequired,
	}
	for i, p := range a.Parameters {
		pv := ParameterView{Name: p.Name, Min: p.Min, Max: p.Max, Value: p.Value}
		if a.Result != nil && i < len(a.Result.Parameters) {
			ps := a.Result.Parameters[i]
			pv.Score = ps.Score
			pv.WithinTolerance = ps.WithinTolerance
			if !p.Hidden {
				diff := ps.Diff
				pv.Diff = &diff
			}
		}
		if !p.Hidden {
			target := p.Target
			pv.Target = &target
		}
		view.Parameters[i] = pv
	}
	if a.Result != nil {
		view.Quality = a.Result.Quality
		view.CanCommit = a.Result.Quality >= a.CommitThreshold
		view.Failing = a.Result.Failing()
	}
	return view
}

func (e *MissionEngine) diagnosisView(s *MissionState) *DiagnosisView {
	d := s.Diagnosis
	view := &DiagnosisView{
		Anomalies:       make([]AnomalyView, len(d.Tracker.Anomalies)),
		Discovered:      d.Tracker.Discovered,
		Total:           d.Tracker.Total(),
		Scanning:        d.Scanning,
		Revealed:        d.Revealed,
		BlockingMessage: d.BlockingMessage,
		ClaimEnabled:    d.Revealed && !d.Scanning && d.BlockingMessage == "" && !d.Tracker.Complete(),
		Disabled:        d.Disabled,
		LastAnswer:      d.LastAnswer,
		WrongAnswers:    d.WrongAnswers,
	}
	for i, a := range d.Tracker.Anomalies {
		av := AnomalyView{Index: a.Index, Visible: d.Revealed, Found: a.Found}
		if d.Revealed {
			av.Label = a.Label
		}
		if a.Found {
			av.Message = a.Message
		}
		view.Anomalies[i] = av
	}

	switch s.Phase {
	case PhaseAwaitingAnswer, PhaseAnsweredIncorrect, PhaseAnsweredCorrect:
		view.Question = d.Question
		view.Options = append([]string(nil), d.Options...)
	}
	view.AnswerEnabled = s.Phase == PhaseAwaitingAnswer && !d.Answered
	if s.Phase == PhaseAnsweredCorrect {
		view.AdvanceAfterMs = e.config.Diagnosis.AdvanceDelayMs
	}
	return view
}

func (e *MissionEngine) deploymentView(dep *DeploymentState) *DeploymentView {
	m := dep.Matcher
	cfg := e.config.Deployment
	view := &DeploymentView{
		Entities:        make([]EntityView, len(m.Entities)),
		Selected:        m.Selected,
		Buffer:          m.Buffer,
		Interference:    m.Interference,
		ConfiguredCount: m.ConfiguredCount,
		Total:           len(m.Entities),
		NetworkQuality:  m.Quality,
		FrequencyStep:   cfg.FrequencyStep,
		PowerStep:       cfg.PowerStep,
		RemainingMs:     dep.Clock.RemainingMs,
		Remaining:       FormatRemaining(dep.Clock.RemainingMs),
		DurationMs:      dep.Clock.DurationMs,
		Running:         dep.Clock.Running,
		LowTime:         dep.Clock.LowTime(),
		Expired:         dep.Clock.Expired,
		TimeRisk:        AnalyzeTimeRisk(dep.Clock, DefaultCautionThresholdMs),
	}
	for i, ent := range m.Entities {
		view.Entities[i] = EntityView{Index: ent.Index, Name: ent.Name, Configured: ent.Configured}
		if ent.Configured {
			view.Entities[i].AppliedFrequency = ent.AppliedFrequency
			view.Entities[i].AppliedPower = ent.AppliedPower
		}
	}

	steps := 0
	for _, ent := range m.Entities {
		if ent.Configured {
			continue
		}
		from := ent.Draft
		if ent.Index == m.Selected {
			from = m.Buffer
		}
		if n := StepsToObjective(from, ent.Objective, cfg.FrequencyStep, cfg.PowerStep); n >= 0 {
			steps += n + 1 // plus the apply
		}
	}
	view.StepsRemaining = steps

	if sel := m.SelectedEntity(); sel != nil {
		obj := sel.Objective
		view.Objective = &obj
		if !sel.Configured && !e.IsTerminal() {
			if cmd, ok := NextAdjustment(m.Buffer, obj, cfg.FrequencyStep, cfg.PowerStep); ok {
				view.Hint = &cmd
			} else {
				view.Hint = &Command{Type: CmdApply}
			}
		}
	}
	return view
}
