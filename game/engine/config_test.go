package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultMissionConfig_Valid(t *testing.T) {
	for _, kind := range []MissionKind{Alignment, Diagnosis, Deployment} {
		config := DefaultMissionConfig(kind)
		if config == nil {
			t.Fatalf("No default config for %s", kind)
		}
		if err := ValidateMissionConfig(config); err != nil {
			t.Errorf("Default %s config is invalid: %v", kind, err)
		}
	}
	if DefaultMissionConfig("racing") != nil {
		t.Error("Expected nil for unknown kind")
	}
}

func TestApplyDefaults(t *testing.T) {
	config := &MissionConfig{Kind: Deployment, Deployment: &DeploymentConfig{EntityCount: 3}}
	ApplyDefaults(config)

	if config.ToleranceMode != Exact {
		t.Errorf("Expected exact mode for deployment, got %s", config.ToleranceMode)
	}
	d := config.Deployment
	if len(d.EntityNames) != 3 || d.EntityNames[2] != "GAMMA" {
		t.Errorf("Unexpected entity names %v", d.EntityNames)
	}
	if d.DurationMs != DefaultClockDurationMs || d.LowTimeThresholdMs != DefaultLowTimeThresholdMs {
		t.Errorf("Unexpected clock defaults %d %d", d.DurationMs, d.LowTimeThresholdMs)
	}
	if d.NeutralFrequency != NeutralFrequency || d.PowerStep != PowerGridStep {
		t.Errorf("Unexpected neutral/step defaults %+v", d)
	}

	a := &MissionConfig{Kind: Alignment, Alignment: &AlignmentConfig{}}
	ApplyDefaults(a)
	if a.Alignment.CommitThresholdValue() != DefaultCommitThreshold || *a.Alignment.Tolerance != DefaultTolerance {
		t.Errorf("Unexpected alignment defaults %+v", a.Alignment)
	}
}

func TestValidateMissionConfig_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *MissionConfig)
		kind   MissionKind
		want   string
	}{
		{"missing name", func(c *MissionConfig) { c.Name = "" }, Alignment, "name is required"},
		{"missing welcome", func(c *MissionConfig) { c.Messages.Welcome = "" }, Alignment, "messages.welcome"},
		{"unknown kind", func(c *MissionConfig) { c.Kind = "racing" }, Alignment, "kind must be one of"},
		{"zero tolerance", func(c *MissionConfig) { c.Alignment.Tolerance = ptr(0.0) }, Alignment, "tolerance must be positive"},
		{"bad tolerance", func(c *MissionConfig) { c.Alignment.Tolerance = ptr(-1.0) }, Alignment, "tolerance must be positive"},
		{"threshold too high", func(c *MissionConfig) { c.Alignment.CommitThreshold = ptr(101) }, Alignment, "commit_threshold"},
		{"duplicate parameter", func(c *MissionConfig) { c.Alignment.Parameters[1].Name = "angle" }, Alignment, "duplicate name"},
		{"target out of range", func(c *MissionConfig) { c.Alignment.Parameters[0].Target = 120 }, Alignment, "target 120 outside"},
		{"bad sent format", func(c *MissionConfig) { c.Messages.MessageSent = "sent" }, Alignment, "message_sent"},
		{"no anomalies", func(c *MissionConfig) { c.Diagnosis.Anomalies = nil }, Diagnosis, "anomalies must not be empty"},
		{"correct index", func(c *MissionConfig) { c.Diagnosis.CorrectIndex = 4 }, Diagnosis, "correct_index"},
		{"feedback count", func(c *MissionConfig) { c.Diagnosis.Feedback = []string{"x"} }, Diagnosis, "one entry per option"},
		{"negative delay", func(c *MissionConfig) { c.Diagnosis.RetryDelayMs = -1 }, Diagnosis, "retry_delay_ms"},
		{"approximate deployment", func(c *MissionConfig) { c.ToleranceMode = Approximate }, Deployment, "require tolerance_mode"},
		{"too many entities", func(c *MissionConfig) { c.Deployment.EntityCount = 9 }, Deployment, "entity_count"},
		{"names mismatch", func(c *MissionConfig) { c.Deployment.EntityNames = []string{"ONE"} }, Deployment, "entity_names"},
		{"low time too large", func(c *MissionConfig) { c.Deployment.LowTimeThresholdMs = c.Deployment.DurationMs }, Deployment, "low_time_threshold_ms"},
		{"objective off grid", func(c *MissionConfig) {
			c.Deployment.Objectives = []Objective{{Frequency: 2410, Power: 70}, {Frequency: 2400, Power: 50}}
		}, Deployment, "not on the objective grid"},
		{"missing expired message", func(c *MissionConfig) { c.Messages.Expired = "" }, Deployment, "messages.expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultMissionConfig(tt.kind)
			tt.mutate(config)
			err := ValidateMissionConfig(config)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Expected ErrInvalidConfig, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

const testDeploymentJSON = `{
	"name": "Test Deployment",
	"description": "Three satellites",
	"kind": "deployment",
	"seed": 99,
	"deployment": {"entity_count": 3, "duration_ms": 60000, "low_time_threshold_ms": 10000},
	"messages": {"welcome": "Go!", "completed": "Done!", "expired": "Too slow!"}
}`

func TestParseMissionConfig(t *testing.T) {
	config, err := ParseMissionConfig([]byte(testDeploymentJSON))
	if err != nil {
		t.Fatalf("ParseMissionConfig failed: %v", err)
	}
	if config.Kind != Deployment || config.Seed != 99 || config.ToleranceMode != Exact {
		t.Errorf("Unexpected config %+v", config)
	}
	if len(config.Deployment.EntityNames) != 3 {
		t.Errorf("Expected 3 default names, got %v", config.Deployment.EntityNames)
	}

	if _, err := ParseMissionConfig([]byte(`{"name": `)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for malformed JSON, got %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

func TestParseMissionConfig_ExplicitZeroAlignment(t *testing.T) {
	const base = `{"name": "zero", "kind": "alignment", "messages": {"welcome": "w", "completed": "c"},
		"alignment": {%s "parameters": [{"name": "angle", "min": 0, "max": 90, "initial": 10, "target": 80}]}}`

	config, err := ParseMissionConfig([]byte(strings.Replace(base, "%s", `"commit_threshold": 0,`, 1)))
	if err != nil {
		t.Fatalf("A zero commit threshold should be valid: %v", err)
	}
	if got := config.Alignment.CommitThresholdValue(); got != 0 {
		t.Errorf("Expected commit threshold 0 to be kept, got %d", got)
	}
	if got := config.Alignment.ToleranceValue(); got != DefaultTolerance {
		t.Errorf("Expected default tolerance when omitted, got %v", got)
	}

	state := NewMissionState(config, nil)
	if state.Alignment.CommitThreshold != 0 {
		t.Errorf("Expected state threshold 0, got %d", state.Alignment.CommitThreshold)
	}

	_, err = ParseMissionConfig([]byte(strings.Replace(base, "%s", `"tolerance": 0,`, 1)))
	if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), "tolerance must be positive") {
		t.Errorf("Expected an explicit zero tolerance to be rejected, got %v", err)
	}
}

func TestMissionConfig_Redacted(t *testing.T) {
	config := DefaultMissionConfig(Alignment)
	config.Alignment.Parameters[2].Hidden = true

	redacted := config.Redacted()
	if got := redacted.Alignment.Parameters[2].Target; got != 0 {
		t.Errorf("Expected hidden target zeroed, got %v", got)
	}
	if got := redacted.Alignment.Parameters[0].Target; got != 75 {
		t.Errorf("Expected visible target kept, got %v", got)
	}
	if config.Alignment.Parameters[2].Target != 70 {
		t.Error("Redacted must not modify the original")
	}

	diagnosis := DefaultMissionConfig(Diagnosis)
	if diagnosis.Redacted().Diagnosis != diagnosis.Diagnosis {
		t.Error("Configs without parameters pass through")
	}
	if (*MissionConfig)(nil).Redacted() != nil {
		t.Error("Expected nil for a nil config")
	}
}

func TestSeedReproducesObjectives(t *testing.T) {
	c1, _ := ParseMissionConfig([]byte(testDeploymentJSON))
	c2, _ := ParseMissionConfig([]byte(testDeploymentJSON))
	e1 := mustEngine(t, c1)
	e2 := mustEngine(t, c2)

	ents1 := e1.GetState().Deployment.Matcher.Entities
	ents2 := e2.GetState().Deployment.Matcher.Entities
	for i := range ents1 {
		if ents1[i].Objective != ents2[i].Objective {
			t.Errorf("Entity %d objectives differ: %+v vs %+v", i, ents1[i].Objective, ents2[i].Objective)
		}
	}
}

func TestLoadConfigByName(t *testing.T) {
	tempDir := t.TempDir()

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd)
	os.Chdir(tempDir)

	os.MkdirAll("configs", 0755)
	err := os.WriteFile(filepath.Join("configs", "test.json"), []byte(testDeploymentJSON), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	config, err := LoadConfigByName("test")
	if err != nil {
		t.Fatalf("Failed to load config by name: %v", err)
	}
	if config.Name != "Test Deployment" {
		t.Errorf("Expected config name 'Test Deployment', got '%s'", config.Name)
	}

	if _, err := LoadConfigByName("test.json"); err != nil {
		t.Errorf("Failed to load config by name with extension: %v", err)
	}

	_, err = LoadConfigByName("nonexistent")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("Expected 'not found' error, got: %v", err)
	}
}

func TestLoadMissionConfig_ConfigDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "alt.json"), []byte(testDeploymentJSON), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_DIR", dir)

	config, err := LoadMissionConfig("configs/alt.json")
	if err != nil {
		t.Fatalf("Expected CONFIG_DIR to be honoured: %v", err)
	}
	if config.Name != "Test Deployment" {
		t.Errorf("Unexpected config %s", config.Name)
	}
}

func TestNewMissionState_Initial(t *testing.T) {
	config := createDeploymentConfig()
	state := NewMissionState(config, NewRandom(1))

	if state.Phase != PhaseConfiguring || state.Deployment == nil {
		t.Fatalf("Unexpected initial deployment state %+v", state)
	}
	if !state.Deployment.Clock.Running || state.Deployment.Clock.RemainingMs != DefaultClockDurationMs {
		t.Errorf("Expected clock running with full duration, got %+v", state.Deployment.Clock)
	}
	if state.Deployment.Matcher.Entities[1].Objective != (Objective{Frequency: 2600, Power: 100}) {
		t.Errorf("Expected pinned objective, got %+v", state.Deployment.Matcher.Entities[1].Objective)
	}

	d := NewMissionState(createDiagnosisConfig(), nil)
	if d.Phase != PhaseScanning || d.Diagnosis.Tracker.Total() != DefaultAnomalyCount {
		t.Errorf("Unexpected initial diagnosis state %+v", d.Diagnosis)
	}
}
