package engine

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Random is the source used to generate objectives. *rand.Rand satisfies it.
type Random interface {
	Intn(n int) int
}

// NewRandom returns a seeded source; seed 0 seeds from the wall clock
func NewRandom(seed int64) Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// GenerateObjective samples frequency and power independently from their grids.
// Every grid point is reachable from any other by the fixed adjustment steps.
func GenerateObjective(rng Random) Objective {
	return Objective{
		Frequency: FrequencyGridBase + FrequencyGridStep*rng.Intn(FrequencyGridSteps+1),
		Power:     PowerGridBase + PowerGridStep*rng.Intn(PowerGridSteps+1),
	}
}

// ConfigMatcher tracks entities that must each be configured to their own
// objective by exact match through a shared edit buffer
type ConfigMatcher struct {
	Entities        []Entity  `json:"entities"`
	Selected        int       `json:"selected"`
	Buffer          Objective `json:"buffer"`
	Interference    float64   `json:"interference"`
	ConfiguredCount int       `json:"configured_count"`
	Quality         int       `json:"quality"`
}

// NewConfigMatcher creates entities with freshly generated objectives. Drafts
// and the buffer start at the neutral values.
func NewConfigMatcher(names []string, rng Random, neutral Objective) *ConfigMatcher {
	m := &ConfigMatcher{
		Entities: make([]Entity, len(names)),
		Selected: -1,
		Buffer:   neutral,
	}
	for i, name := range names {
		m.Entities[i] = Entity{
			Index:     i,
			Name:      name,
			Objective: GenerateObjective(rng),
			Draft:     neutral,
		}
	}
	return m
}

// Select loads entity i's draft into the buffer
func (m *ConfigMatcher) Select(i int) error {
	if i < 0 || i >= len(m.Entities) {
		return fmt.Errorf("%w: entity %d (have %d)", ErrIndexOutOfRange, i, len(m.Entities))
	}
	m.Selected = i
	m.Buffer = m.Entities[i].Draft
	m.recomputeInterference()
	return nil
}

// SelectedEntity returns the selected entity or nil
func (m *ConfigMatcher) SelectedEntity() *Entity {
	if m.Selected < 0 || m.Selected >= len(m.Entities) {
		return nil
	}
	return &m.Entities[m.Selected]
}

// AdjustFrequency moves the buffer frequency by delta within global bounds and
// reports whether it changed. Deltas wider than the range saturate.
func (m *ConfigMatcher) AdjustFrequency(delta int) bool {
	delta = clampInt(delta, FrequencyMin-FrequencyMax, FrequencyMax-FrequencyMin)
	next := clampInt(m.Buffer.Frequency+delta, FrequencyMin, FrequencyMax)
	if next == m.Buffer.Frequency {
		return false
	}
	m.Buffer.Frequency = next
	m.storeDraft()
	m.recomputeInterference()
	return true
}

// AdjustPower moves the buffer power by delta within global bounds and
// reports whether it changed
func (m *ConfigMatcher) AdjustPower(delta int) bool {
	delta = clampInt(delta, PowerMin-PowerMax, PowerMax-PowerMin)
	next := clampInt(m.Buffer.Power+delta, PowerMin, PowerMax)
	if next == m.Buffer.Power {
		return false
	}
	m.Buffer.Power = next
	m.storeDraft()
	m.recomputeInterference()
	return true
}

// Apply configures the selected entity when the buffer matches its objective
// exactly. Configuration is one-way.
func (m *ConfigMatcher) Apply() (*Entity, error) {
	ent := m.SelectedEntity()
	if ent == nil {
		return nil, ErrNoEntitySelected
	}
	if ent.Configured {
		return nil, fmt.Errorf("%w: entity %d", ErrAlreadyConfigured, ent.Index)
	}

	result, err := Scorer{Mode: Exact}.Score([]Parameter{
		{Name: "frequency", Min: FrequencyMin, Max: FrequencyMax, Value: float64(m.Buffer.Frequency), Target: float64(ent.Objective.Frequency)},
		{Name: "power", Min: PowerMin, Max: PowerMax, Value: float64(m.Buffer.Power), Target: float64(ent.Objective.Power)},
	})
	if err != nil {
		return nil, err
	}
	if failing := result.Failing(); len(failing) > 0 {
		return nil, &MismatchError{Entity: ent.Index, Fields: failing}
	}

	ent.Configured = true
	ent.AppliedFrequency = m.Buffer.Frequency
	ent.AppliedPower = m.Buffer.Power
	m.ConfiguredCount++
	m.recomputeQuality()
	return ent, nil
}

// Complete reports whether every entity is configured
func (m *ConfigMatcher) Complete() bool {
	return len(m.Entities) > 0 && m.ConfiguredCount == len(m.Entities)
}

func (m *ConfigMatcher) storeDraft() {
	if ent := m.SelectedEntity(); ent != nil && !ent.Configured {
		ent.Draft = m.Buffer
	}
}

// recomputeInterference measures the buffer against the selected objective.
// It is informational and never gates Apply.
func (m *ConfigMatcher) recomputeInterference() {
	ent := m.SelectedEntity()
	if ent == nil {
		m.Interference = 0
		return
	}
	df := math.Abs(float64(m.Buffer.Frequency - ent.Objective.Frequency))
	dp := math.Abs(float64(m.Buffer.Power - ent.Objective.Power))
	m.Interference = math.Min(MaxQuality, df/10+dp/2)
}

func (m *ConfigMatcher) recomputeQuality() {
	if len(m.Entities) == 0 {
		m.Quality = 0
		return
	}
	q := float64(m.ConfiguredCount)/float64(len(m.Entities))*MaxQuality - m.Interference
	m.Quality = RoundHalfUp(math.Max(0, q))
}
