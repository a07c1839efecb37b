package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// MissionConfig defines one mission: its kind, rules and messages. Exactly
// the sub-config matching Kind is used.
type MissionConfig struct {
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Kind          MissionKind   `json:"kind"`
	ToleranceMode ToleranceMode `json:"tolerance_mode,omitempty"`

	// Seed makes objective generation reproducible; 0 seeds from the clock
	Seed int64 `json:"seed,omitempty"`

	Alignment  *AlignmentConfig  `json:"alignment,omitempty"`
	Diagnosis  *DiagnosisConfig  `json:"diagnosis,omitempty"`
	Deployment *DeploymentConfig `json:"deployment,omitempty"`

	Messages MissionMessages `json:"messages"`
}

// MissionMessages are the player-facing texts a mission emits
type MissionMessages struct {
	Welcome        string `json:"welcome"`
	Completed      string `json:"completed"`
	Expired        string `json:"expired,omitempty"`
	MessageSent    string `json:"message_sent,omitempty"` // %d sent, %d required
	ScanComplete   string `json:"scan_complete,omitempty"`
	Configured     string `json:"configured,omitempty"` // %s entity name
	LowTime        string `json:"low_time,omitempty"`
}

// ParameterConfig describes one tunable parameter
type ParameterConfig struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Initial float64 `json:"initial"`
	Target  float64 `json:"target"`
	Hidden  bool    `json:"hidden,omitempty"`
}

// AlignmentConfig configures the tolerance tuning mission. Tolerance and
// CommitThreshold are pointers so an explicit 0 is kept: a zero tolerance is
// rejected by validation and a zero threshold allows committing at once.
// MessagesRequired treats 0 as unset.
type AlignmentConfig struct {
	Tolerance        *float64          `json:"tolerance,omitempty"`
	CommitThreshold  *int              `json:"commit_threshold,omitempty"`
	MessagesRequired int               `json:"messages_required"`
	Parameters       []ParameterConfig `json:"parameters"`
}

// ToleranceValue returns the tolerance, or the default when unset
func (a *AlignmentConfig) ToleranceValue() float64 {
	if a.Tolerance == nil {
		return DefaultTolerance
	}
	return *a.Tolerance
}

// CommitThresholdValue returns the commit threshold, or the default when unset
func (a *AlignmentConfig) CommitThresholdValue() int {
	if a.CommitThreshold == nil {
		return DefaultCommitThreshold
	}
	return *a.CommitThreshold
}

// AnomalyConfig describes one discoverable anomaly
type AnomalyConfig struct {
	Label   string `json:"label"`
	Message string `json:"message"`
}

// DiagnosisConfig configures the discover-then-answer mission. Durations are
// in logical milliseconds.
type DiagnosisConfig struct {
	Anomalies         []AnomalyConfig `json:"anomalies"`
	ScanDurationMs    int64           `json:"scan_duration_ms"`
	MessageDurationMs int64           `json:"message_duration_ms"`
	RevealDelayMs     int64           `json:"reveal_delay_ms"`
	RetryDelayMs      int64           `json:"retry_delay_ms"`
	AdvanceDelayMs    int64           `json:"advance_delay_ms"`
	Question          string          `json:"question"`
	Options           []string        `json:"options"`
	Feedback          []string        `json:"feedback,omitempty"`
	CorrectIndex      int             `json:"correct_index"`
}

// DeploymentConfig configures the timed multi-entity mission
type DeploymentConfig struct {
	EntityCount        int      `json:"entity_count"`
	EntityNames        []string `json:"entity_names,omitempty"`
	DurationMs         int64    `json:"duration_ms"`
	LowTimeThresholdMs int64    `json:"low_time_threshold_ms"`
	NeutralFrequency   int      `json:"neutral_frequency"`
	NeutralPower       int      `json:"neutral_power"`
	FrequencyStep      int      `json:"frequency_step"`
	PowerStep          int      `json:"power_step"`

	// Objectives pins the per-entity objectives instead of sampling them
	Objectives []Objective `json:"objectives,omitempty"`
}

// Redacted returns a copy of config safe to show a player: hidden parameter
// targets are zeroed
func (c *MissionConfig) Redacted() *MissionConfig {
	if c == nil {
		return nil
	}
	out := *c
	if c.Alignment != nil {
		a := *c.Alignment
		a.Parameters = make([]ParameterConfig, len(c.Alignment.Parameters))
		for i, p := range c.Alignment.Parameters {
			if p.Hidden {
				p.Target = 0
			}
			a.Parameters[i] = p
		}
		out.Alignment = &a
	}
	return &out
}

// ApplyDefaults fills unset fields with the built-in defaults
func ApplyDefaults(config *MissionConfig) {
	if config == nil {
		return
	}
	if config.ToleranceMode == "" {
		config.ToleranceMode = Approximate
		if config.Kind == Deployment {
			config.ToleranceMode = Exact
		}
	}

	if a := config.Alignment; a != nil {
		if a.Tolerance == nil {
			tolerance := DefaultTolerance
			a.Tolerance = &tolerance
		}
		if a.CommitThreshold == nil {
			threshold := DefaultCommitThreshold
			a.CommitThreshold = &threshold
		}
		if a.MessagesRequired == 0 {
			a.MessagesRequired = DefaultMessagesRequired
		}
	}

	if d := config.Diagnosis; d != nil {
		setDefault(&d.ScanDurationMs, DefaultScanDurationMs)
		setDefault(&d.MessageDurationMs, DefaultMessageDurationMs)
		setDefault(&d.RevealDelayMs, DefaultRevealDelayMs)
		setDefault(&d.RetryDelayMs, DefaultRetryDelayMs)
		setDefault(&d.AdvanceDelayMs, DefaultAdvanceDelayMs)
	}

	if d := config.Deployment; d != nil {
		if d.EntityCount == 0 {
			d.EntityCount = DefaultEntityCount
		}
		if len(d.EntityNames) == 0 {
			d.EntityNames = defaultEntityNames(d.EntityCount)
		}
		setDefault(&d.DurationMs, DefaultClockDurationMs)
		setDefault(&d.LowTimeThresholdMs, DefaultLowTimeThresholdMs)
		if d.NeutralFrequency == 0 {
			d.NeutralFrequency = NeutralFrequency
		}
		if d.NeutralPower == 0 {
			d.NeutralPower = NeutralPower
		}
		if d.FrequencyStep == 0 {
			d.FrequencyStep = FrequencyGridStep
		}
		if d.PowerStep == 0 {
			d.PowerStep = PowerGridStep
		}
	}
}

func setDefault(v *int64, def int64) {
	if *v == 0 {
		*v = def
	}
}

var greekNames = []string{"ALFA", "BETA", "GAMMA", "DELTA", "EPSILON", "ZETA", "ETA", "THETA"}

func defaultEntityNames(n int) []string {
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i < len(greekNames) {
			names = append(names, greekNames[i])
		} else {
			names = append(names, fmt.Sprintf("SAT-%d", i+1))
		}
	}
	return names
}

// ValidateMissionConfig validates a mission configuration for correctness and
// playability. Errors wrap ErrInvalidConfig.
func ValidateMissionConfig(config *MissionConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}
	if config.Name == "" {
		return invalid("name is required")
	}
	if config.Messages.Welcome == "" {
		return invalid("messages.welcome is required")
	}
	if config.Messages.Completed == "" {
		return invalid("messages.completed is required")
	}
	if config.Messages.MessageSent != "" && strings.Count(config.Messages.MessageSent, "%d") != 2 {
		return invalid("messages.message_sent must contain %%d twice for sent and required counts")
	}
	if config.Messages.Configured != "" && !strings.Contains(config.Messages.Configured, "%s") {
		return invalid("messages.configured must contain %%s for the entity name")
	}
	switch config.ToleranceMode {
	case Approximate, Exact:
	default:
		return invalid("tolerance_mode must be %q or %q, got %q", Approximate, Exact, config.ToleranceMode)
	}

	switch config.Kind {
	case Alignment:
		return validateAlignment(config)
	case Diagnosis:
		return validateDiagnosis(config.Diagnosis)
	case Deployment:
		return validateDeployment(config)
	}
	return invalid("kind must be one of %q, %q, %q, got %q", Alignment, Diagnosis, Deployment, config.Kind)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: config validation: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func validateAlignment(config *MissionConfig) error {
	a := config.Alignment
	if a == nil {
		return invalid("alignment section is required for kind %q", Alignment)
	}
	if tolerance := a.ToleranceValue(); config.ToleranceMode == Approximate && (!(tolerance > 0) || math.IsInf(tolerance, 1)) {
		return invalid("alignment.tolerance must be positive and finite, got %v", tolerance)
	}
	if threshold := a.CommitThresholdValue(); threshold < 0 || threshold > MaxQuality {
		return invalid("alignment.commit_threshold must be between 0 and %d, got %d", MaxQuality, threshold)
	}
	if a.MessagesRequired < 1 {
		return invalid("alignment.messages_required must be at least 1, got %d", a.MessagesRequired)
	}
	if len(a.Parameters) == 0 {
		return invalid("alignment.parameters must not be empty")
	}

	seen := make(map[string]bool, len(a.Parameters))
	for i, p := range a.Parameters {
		if p.Name == "" {
			return invalid("alignment.parameters[%d].name is required", i)
		}
		if seen[p.Name] {
			return invalid("alignment.parameters: duplicate name %q", p.Name)
		}
		seen[p.Name] = true
		if !(p.Min < p.Max) {
			return invalid("parameter %q: min (%v) must be below max (%v)", p.Name, p.Min, p.Max)
		}
		if p.Initial < p.Min || p.Initial > p.Max {
			return invalid("parameter %q: initial %v outside [%v, %v]", p.Name, p.Initial, p.Min, p.Max)
		}
		if p.Target < p.Min || p.Target > p.Max {
			return invalid("parameter %q: target %v outside [%v, %v]", p.Name, p.Target, p.Min, p.Max)
		}
	}
	return nil
}

func validateDiagnosis(d *DiagnosisConfig) error {
	if d == nil {
		return invalid("diagnosis section is required for kind %q", Diagnosis)
	}
	if len(d.Anomalies) == 0 {
		return invalid("diagnosis.anomalies must not be empty")
	}
	for i, a := range d.Anomalies {
		if a.Label == "" {
			return invalid("diagnosis.anomalies[%d].label is required", i)
		}
		if a.Message == "" {
			return invalid("diagnosis.anomalies[%d].message is required", i)
		}
	}
	for name, v := range map[string]int64{
		"scan_duration_ms":    d.ScanDurationMs,
		"message_duration_ms": d.MessageDurationMs,
		"reveal_delay_ms":     d.RevealDelayMs,
		"retry_delay_ms":      d.RetryDelayMs,
		"advance_delay_ms":    d.AdvanceDelayMs,
	} {
		if v < 0 {
			return invalid("diagnosis.%s must not be negative, got %d", name, v)
		}
	}
	if d.Question == "" {
		return invalid("diagnosis.question is required")
	}
	if len(d.Options) < 2 {
		return invalid("diagnosis.options must have at least 2 entries, got %d", len(d.Options))
	}
	if d.CorrectIndex < 0 || d.CorrectIndex >= len(d.Options) {
		return invalid("diagnosis.correct_index %d outside options (have %d)", d.CorrectIndex, len(d.Options))
	}
	if len(d.Feedback) != 0 && len(d.Feedback) != len(d.Options) {
		return invalid("diagnosis.feedback must have one entry per option, got %d for %d options", len(d.Feedback), len(d.Options))
	}
	return nil
}

func validateDeployment(config *MissionConfig) error {
	d := config.Deployment
	if d == nil {
		return invalid("deployment section is required for kind %q", Deployment)
	}
	if config.ToleranceMode != Exact {
		return invalid("deployment missions require tolerance_mode %q", Exact)
	}
	if config.Messages.Expired == "" {
		return invalid("messages.expired is required for deployment missions")
	}
	if d.EntityCount < 1 || d.EntityCount > MaxEntityCount {
		return invalid("deployment.entity_count must be between 1 and %d, got %d", MaxEntityCount, d.EntityCount)
	}
	if len(d.EntityNames) != d.EntityCount {
		return invalid("deployment.entity_names must have %d entries, got %d", d.EntityCount, len(d.EntityNames))
	}
	if d.DurationMs <= 0 {
		return invalid("deployment.duration_ms must be positive, got %d", d.DurationMs)
	}
	if d.LowTimeThresholdMs < 0 || d.LowTimeThresholdMs >= d.DurationMs {
		return invalid("deployment.low_time_threshold_ms must be in [0, duration_ms), got %d", d.LowTimeThresholdMs)
	}
	if d.NeutralFrequency < FrequencyMin || d.NeutralFrequency > FrequencyMax {
		return invalid("deployment.neutral_frequency must be between %d and %d, got %d", FrequencyMin, FrequencyMax, d.NeutralFrequency)
	}
	if d.NeutralPower < PowerMin || d.NeutralPower > PowerMax {
		return invalid("deployment.neutral_power must be between %d and %d, got %d", PowerMin, PowerMax, d.NeutralPower)
	}
	if d.FrequencyStep <= 0 || d.PowerStep <= 0 {
		return invalid("deployment steps must be positive, got frequency %d power %d", d.FrequencyStep, d.PowerStep)
	}
	if len(d.Objectives) != 0 && len(d.Objectives) != d.EntityCount {
		return invalid("deployment.objectives must have %d entries, got %d", d.EntityCount, len(d.Objectives))
	}
	for i, o := range d.Objectives {
		if !OnObjectiveGrid(o) {
			return invalid("deployment.objectives[%d] (%d MHz, %d W) is not on the objective grid", i, o.Frequency, o.Power)
		}
		if !reachable(d.NeutralFrequency, o.Frequency, d.FrequencyStep) || !reachable(d.NeutralPower, o.Power, d.PowerStep) {
			return invalid("deployment.objectives[%d] is not reachable from the neutral values with the configured steps", i)
		}
	}
	return nil
}

// OnObjectiveGrid reports whether o is a value GenerateObjective can produce
func OnObjectiveGrid(o Objective) bool {
	fk := o.Frequency - FrequencyGridBase
	pk := o.Power - PowerGridBase
	return fk >= 0 && fk%FrequencyGridStep == 0 && fk/FrequencyGridStep <= FrequencyGridSteps &&
		pk >= 0 && pk%PowerGridStep == 0 && pk/PowerGridStep <= PowerGridSteps
}

func reachable(from, to, step int) bool {
	return abs(to-from)%step == 0
}

// LoadMissionConfig loads a mission configuration from a JSON file
func LoadMissionConfig(filename string) (*MissionConfig, error) {
	data, err := os.ReadFile(resolveConfigPath(filename))
	if err != nil {
		return nil, err
	}
	return ParseMissionConfig(data)
}

// resolveConfigPath honours CONFIG_DIR as an alternative configs directory
func resolveConfigPath(filename string) string {
	if configDir := os.Getenv("CONFIG_DIR"); configDir != "" {
		if strings.HasPrefix(filename, "configs/") {
			return filepath.Join(configDir, strings.TrimPrefix(filename, "configs/"))
		}
	}
	return filename
}

// ParseMissionConfig decodes, defaults and validates a JSON mission config
func ParseMissionConfig(data []byte) (*MissionConfig, error) {
	var config MissionConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	ApplyDefaults(&config)
	if err := ValidateMissionConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadConfigByName loads a mission configuration by name from the configs directory
func LoadConfigByName(configName string) (*MissionConfig, error) {
	if !strings.HasSuffix(configName, ".json") {
		configName = configName + ".json"
	}

	configPath := filepath.Join("configs", configName)
	if _, err := os.Stat(resolveConfigPath(configPath)); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file '%s' not found", configName)
	}

	config, err := LoadMissionConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("invalid config '%s': %w", configName, err)
	}
	return config, nil
}

// DefaultMissionConfig returns the built-in configuration for a mission kind
func DefaultMissionConfig(kind MissionKind) *MissionConfig {
	var config *MissionConfig
	switch kind {
	case Alignment:
		config = &MissionConfig{
			Name:        "alignment",
			Description: "Tune antenna angle, signal power and encoding level until the link quality is good enough to send a message",
			Kind:        Alignment,
			Alignment: &AlignmentConfig{
				Parameters: []ParameterConfig{
					{Name: "angle", Min: 0, Max: 90, Initial: 45, Target: 75},
					{Name: "power", Min: 0, Max: 100, Initial: 50, Target: 85},
					{Name: "encoding", Min: 0, Max: 100, Initial: 50, Target: 70},
				},
			},
		}
		config.Messages.Welcome = "Align the antenna and tune the transmitter to restore the link."
		config.Messages.Completed = "Message sent! Communication restored."
		config.Messages.MessageSent = "Message %d/%d sent."
	case Diagnosis:
		config = &MissionConfig{
			Name:        "diagnosis",
			Description: "Scan the satellite, locate every fault and answer the communication question",
			Kind:        Diagnosis,
			Diagnosis: &DiagnosisConfig{
				Anomalies: []AnomalyConfig{
					{Label: "left solar panel", Message: "FAULT DETECTED: left solar panel overheating, temperature 85C (critical)"},
					{Label: "communication module", Message: "FAULT DETECTED: short circuit in communication module, signal degraded to 23%"},
					{Label: "parabolic antenna", Message: "FAULT DETECTED: parabolic antenna misaligned, orientation loss 15.7 degrees"},
				},
				Question: "What is the main challenge when transmitting signals in space?",
				Options: []string{
					"Radio waves weaken with distance.",
					"Sunlight blocks the signals.",
					"There is no interference in a vacuum.",
					"Satellites do not need to transmit constantly.",
				},
				Feedback: []string{
					"Correct! Radio signals lose power over long distances, so they must be amplified.",
					"Try again. Think about how radio waves travel through space.",
					"Try again. Think about how radio waves travel through space.",
					"Try again. Think about how radio waves travel through space.",
				},
				CorrectIndex: 0,
			},
		}
		config.Messages.Welcome = "Start the scanner to reveal the satellite's anomalies."
		config.Messages.Completed = "Diagnosis complete. Satellite repaired."
		config.Messages.ScanComplete = "Anomalies detected! Claim each one to inspect it."
	case Deployment:
		config = &MissionConfig{
			Name:        "deployment",
			Description: "Configure every satellite to its exact frequency and power before time runs out",
			Kind:        Deployment,
			Deployment:  &DeploymentConfig{},
		}
		config.Messages.Welcome = "Select a satellite and match its objective frequency and power."
		config.Messages.Completed = "Network online! Every satellite is configured."
		config.Messages.Expired = "Time is up! Not every satellite was configured."
		config.Messages.Configured = "Satellite %s configured."
		config.Messages.LowTime = "Less than 30 seconds remaining!"
	default:
		return nil
	}

	ApplyDefaults(config)
	return config
}

// NewMissionState creates the initial state for config. Deployment objectives
// are drawn from rng unless pinned by the config.
func NewMissionState(config *MissionConfig, rng Random) *MissionState {
	state := &MissionState{
		ConfigName: config.Name,
		Kind:       config.Kind,
		Message:    config.Messages.Welcome,
		History:    []CommandRecord{},
	}

	switch config.Kind {
	case Alignment:
		a := config.Alignment
		params := make([]Parameter, len(a.Parameters))
		for i, p := range a.Parameters {
			params[i] = Parameter{Name: p.Name, Min: p.Min, Max: p.Max, Value: p.Initial, Target: p.Target, Hidden: p.Hidden}
		}
		state.Phase = PhaseTuning
		state.Alignment = &AlignmentState{
			Parameters:       params,
			Tolerance:        a.ToleranceValue(),
			Mode:             config.ToleranceMode,
			CommitThreshold:  a.CommitThresholdValue(),
			MessagesRequired: a.MessagesRequired,
		}
		state.Alignment.Result, _ = Scorer{Tolerance: a.ToleranceValue(), Mode: config.ToleranceMode}.Score(params)

	case Diagnosis:
		d := config.Diagnosis
		state.Phase = PhaseScanning
		state.Diagnosis = &DiagnosisState{
			Tracker:      *NewDiscoveryTracker(d.Anomalies),
			Question:     d.Question,
			Options:      append([]string(nil), d.Options...),
			Feedback:     append([]string(nil), d.Feedback...),
			CorrectIndex: d.CorrectIndex,
			LastAnswer:   -1,
			Disabled:     -1,
		}

	case Deployment:
		d := config.Deployment
		matcher := NewConfigMatcher(d.EntityNames, rng, Objective{Frequency: d.NeutralFrequency, Power: d.NeutralPower})
		for i, o := range d.Objectives {
			matcher.Entities[i].Objective = o
		}
		clock := NewMissionClock(d.LowTimeThresholdMs)
		clock.Start(d.DurationMs)
		state.Phase = PhaseConfiguring
		state.Deployment = &DeploymentState{Matcher: *matcher, Clock: *clock}
	}

	return state
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
