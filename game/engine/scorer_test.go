package engine

import (
	"errors"
	"math"
	"testing"
)

func TestScore_Bounds(t *testing.T) {
	tests := []struct {
		name      string
		value     float64
		target    float64
		tolerance float64
		wantScore float64
		within    bool
	}{
		{"exact match", 75, 75, 8, 100, true},
		{"half tolerance", 71, 75, 8, 50, true},
		{"at tolerance", 67, 75, 8, 0, true},
		{"beyond tolerance", 50, 75, 8, 0, false},
		{"above target", 79, 75, 8, 50, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Score([]Parameter{{Name: "p", Min: 0, Max: 100, Value: tt.value, Target: tt.target}}, tt.tolerance)
			if err != nil {
				t.Fatalf("Score returned error: %v", err)
			}
			ps := res.Parameters[0]
			if ps.Score != tt.wantScore {
				t.Errorf("Expected score %v, got %v", tt.wantScore, ps.Score)
			}
			if ps.WithinTolerance != tt.within {
				t.Errorf("Expected within %v, got %v", tt.within, ps.WithinTolerance)
			}
			if ps.Score < 0 || ps.Score > 100 {
				t.Errorf("Score %v out of [0,100]", ps.Score)
			}
		})
	}
}

func TestScore_QualityRoundsHalfUp(t *testing.T) {
	// scores 100 and 25 average to 62.5
	params := []Parameter{
		{Name: "a", Min: 0, Max: 100, Value: 10, Target: 10},
		{Name: "b", Min: 0, Max: 100, Value: 16, Target: 10},
	}
	res, err := Score(params, 8)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if res.Quality != 63 {
		t.Errorf("Expected quality 63, got %d", res.Quality)
	}
}

func TestScore_InvalidTolerance(t *testing.T) {
	params := []Parameter{{Name: "a", Min: 0, Max: 1, Value: 0, Target: 1}}
	for _, tol := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if _, err := Score(params, tol); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("tolerance %v: expected ErrInvalidConfig, got %v", tol, err)
		}
	}
	if _, err := Score(nil, 8); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for empty parameters, got %v", err)
	}
}

func TestScorer_ExactMode(t *testing.T) {
	s := Scorer{Mode: Exact}
	res, err := s.Score([]Parameter{
		{Name: "frequency", Value: 2450, Target: 2450},
		{Name: "power", Value: 65, Target: 70},
	})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if !res.Parameters[0].WithinTolerance || res.Parameters[0].Score != 100 {
		t.Errorf("Expected frequency to pass with 100, got %+v", res.Parameters[0])
	}
	if res.Parameters[1].WithinTolerance || res.Parameters[1].Score != 0 {
		t.Errorf("Expected power to fail with 0, got %+v", res.Parameters[1])
	}
	failing := res.Failing()
	if len(failing) != 1 || failing[0] != "power" {
		t.Errorf("Expected failing [power], got %v", failing)
	}
	if res.Quality != 50 {
		t.Errorf("Expected quality 50, got %d", res.Quality)
	}
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[float64]int{0: 0, 0.49: 0, 0.5: 1, 62.5: 63, 66.666: 67, 99.5: 100}
	for in, want := range cases {
		if got := RoundHalfUp(in); got != want {
			t.Errorf("RoundHalfUp(%v) = %d, want %d", in, got, want)
		}
	}
}
