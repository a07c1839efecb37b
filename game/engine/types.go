package engine

// MissionKind identifies which mission a configuration drives
type MissionKind string

const (
	Alignment  MissionKind = "alignment"
	Diagnosis  MissionKind = "diagnosis"
	Deployment MissionKind = "deployment"
)

// ToleranceMode selects how current values are compared with their targets
type ToleranceMode string

const (
	Approximate ToleranceMode = "approximate"
	Exact       ToleranceMode = "exact"
)

// Phase is the tag of the mission state machine
type Phase string

const (
	PhaseTuning              Phase = "tuning"
	PhaseScanning            Phase = "scanning"
	PhaseRevealed            Phase = "revealed"
	PhasePartiallyDiscovered Phase = "partially_discovered"
	PhaseFullyDiscovered     Phase = "fully_discovered"
	PhaseAwaitingAnswer      Phase = "awaiting_answer"
	PhaseAnsweredCorrect     Phase = "answered_correct"
	PhaseAnsweredIncorrect   Phase = "answered_incorrect"
	PhaseConfiguring         Phase = "configuring"
	PhaseCompleted           Phase = "completed"
	PhaseExpired             Phase = "expired"
)

// Terminal reports whether no further gameplay transition can leave this phase
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseExpired, PhaseAnsweredCorrect:
		return true
	}
	return false
}

const (
	// Alignment defaults
	DefaultTolerance        = 8.0
	DefaultCommitThreshold  = 70
	DefaultMessagesRequired = 1
	MaxQuality              = 100

	// Diagnosis defaults (milliseconds)
	DefaultAnomalyCount      = 3
	DefaultScanDurationMs    = 3000
	DefaultMessageDurationMs = 5500
	DefaultRevealDelayMs     = 3000
	DefaultRetryDelayMs      = 3000
	DefaultAdvanceDelayMs    = 4000

	// Deployment defaults
	DefaultEntityCount        = 2
	MaxEntityCount            = 8
	DefaultClockDurationMs    = 120000
	DefaultLowTimeThresholdMs = 30000
	DefaultCautionThresholdMs = 60000
	DefaultTickMs             = 1000

	FrequencyMin = 2000
	FrequencyMax = 3000
	PowerMin     = 10
	PowerMax     = 100

	FrequencyGridBase  = 2400
	FrequencyGridStep  = 25
	FrequencyGridSteps = 8
	PowerGridBase      = 50
	PowerGridStep      = 5
	PowerGridSteps     = 10

	NeutralFrequency = 2400
	NeutralPower     = 50

	MaxBatchCommands = 50
)

// Parameter is a named numeric value the player tunes toward a target
type Parameter struct {
	Name   string  `json:"name"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Value  float64 `json:"value"`
	Target float64 `json:"target"`
	Hidden bool    `json:"hidden,omitempty"` // target is not shown to the player
}

// ParameterScore is the per-parameter part of a ToleranceResult
type ParameterScore struct {
	Name            string  `json:"name"`
	Diff            float64 `json:"diff"`
	WithinTolerance bool    `json:"within_tolerance"`
	Score           float64 `json:"score"`
}

// ToleranceResult is recomputed on every parameter change
type ToleranceResult struct {
	Parameters []ParameterScore `json:"parameters"`
	Quality    int              `json:"quality"`
}

// Anomaly is a discoverable fault on the satellite
type Anomaly struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Message string `json:"message"`
	Found   bool   `json:"found"`
}

// Objective is the frequency/power pair an entity must be configured to
type Objective struct {
	Frequency int `json:"frequency"`
	Power     int `json:"power"`
}

// Entity is an independently configurable device
type Entity struct {
	Index            int       `json:"index"`
	Name             string    `json:"name"`
	Configured       bool      `json:"configured"`
	AppliedFrequency int       `json:"applied_frequency"`
	AppliedPower     int       `json:"applied_power"`
	Objective        Objective `json:"objective"`

	// Draft holds the editable values last left in the buffer for this entity
	Draft Objective `json:"draft"`
}

// AlignmentState is the state of the tolerance tuning mission
type AlignmentState struct {
	Parameters      []Parameter      `json:"parameters"`
	Tolerance       float64          `json:"tolerance"`
	Mode            ToleranceMode    `json:"mode"`
	CommitThreshold int              `json:"commit_threshold"`
	Result          *ToleranceResult `json:"result"`

	MessagesSent     int `json:"messages_sent"`
	MessagesRequired int `json:"messages_required"`
}

// DiagnosisState is the state of the discover-then-answer mission
type DiagnosisState struct {
	Tracker         DiscoveryTracker `json:"tracker"`
	Scanning        bool             `json:"scanning"`
	Revealed        bool             `json:"revealed"`
	BlockingMessage string           `json:"blocking_message,omitempty"`
	Question        string           `json:"question"`
	Options         []string         `json:"options"`
	Feedback        []string         `json:"feedback,omitempty"`
	CorrectIndex    int              `json:"correct_index"`
	Answered        bool             `json:"answered"`
	LastAnswer      int              `json:"last_answer"`
	WrongAnswers    int              `json:"wrong_answers"`

	// Disabled is the option rejected by the last wrong answer, or -1
	Disabled int `json:"disabled"`
}

// DeploymentState is the state of the timed multi-entity mission
type DeploymentState struct {
	Matcher         ConfigMatcher `json:"matcher"`
	Clock           MissionClock  `json:"clock"`
	LowTimeSignaled bool          `json:"low_time_signaled"`
}

// MissionState represents the complete mission state. Exactly one of
// Alignment, Diagnosis or Deployment is set, matching Kind.
type MissionState struct {
	ConfigName string              `json:"config_name"`
	Kind       MissionKind         `json:"kind"`
	Phase      Phase               `json:"phase"`
	NowMs      int64               `json:"now_ms"`
	Pending    []PendingTransition `json:"pending,omitempty"`
	Message    string              `json:"message"`
	EventSeq   int64               `json:"event_seq"`

	Alignment  *AlignmentState  `json:"alignment,omitempty"`
	Diagnosis  *DiagnosisState  `json:"diagnosis,omitempty"`
	Deployment *DeploymentState `json:"deployment,omitempty"`

	// History is cumulative and survives resets; CurrentCommands counts
	// commands since the last reset
	History         []CommandRecord `json:"history"`
	TotalCommands   int             `json:"total_commands"`
	CurrentCommands int             `json:"current_commands"`
}

// CommandRecord represents a single command in the mission history
type CommandRecord struct {
	Seq       int     `json:"seq"`
	Command   Command `json:"command"`
	Outcome   Outcome `json:"outcome"`
	Error     string  `json:"error,omitempty"`
	Phase     Phase   `json:"phase"`
	AtMs      int64   `json:"at_ms"`
	Timestamp int64   `json:"timestamp"`
}
