package engine

import (
	"fmt"
	"math"
)

// Scorer compares parameter values with their targets
type Scorer struct {
	Tolerance float64
	Mode      ToleranceMode
}

// Score scores parameters in approximate mode with the given tolerance
func Score(params []Parameter, tolerance float64) (*ToleranceResult, error) {
	return Scorer{Tolerance: tolerance, Mode: Approximate}.Score(params)
}

// Score computes per-parameter scores and the aggregate quality.
//
// In approximate mode score = max(0, 100 - diff/tolerance*100) and a parameter
// is within tolerance when diff <= tolerance. In exact mode only diff == 0
// passes and scores 100.
func (s Scorer) Score(params []Parameter) (*ToleranceResult, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no parameters to score", ErrInvalidConfig)
	}
	if s.Mode != Exact && (!(s.Tolerance > 0) || math.IsInf(s.Tolerance, 1)) {
		return nil, fmt.Errorf("%w: tolerance must be positive and finite, got %v", ErrInvalidConfig, s.Tolerance)
	}

	result := &ToleranceResult{Parameters: make([]ParameterScore, 0, len(params))}
	total := 0.0
	for _, p := range params {
		diff := math.Abs(p.Value - p.Target)
		ps := ParameterScore{Name: p.Name, Diff: diff}
		if s.Mode == Exact {
			ps.WithinTolerance = diff == 0
			if ps.WithinTolerance {
				ps.Score = MaxQuality
			}
		} else {
			ps.WithinTolerance = diff <= s.Tolerance
			ps.Score = math.Max(0, MaxQuality-(diff/s.Tolerance)*MaxQuality)
		}
		total += ps.Score
		result.Parameters = append(result.Parameters, ps)
	}

	result.Quality = RoundHalfUp(total / float64(len(params)))
	return result, nil
}

// Failing returns the names of parameters outside tolerance
func (r *ToleranceResult) Failing() []string {
	var names []string
	for _, p := range r.Parameters {
		if !p.WithinTolerance {
			names = append(names, p.Name)
		}
	}
	return names
}
