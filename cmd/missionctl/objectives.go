package main

import (
	"fmt"
	"io"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

func runObjectives(out io.Writer, seed int64, count int) error {
	if count < 1 || count > engine.MaxEntityCount {
		return fmt.Errorf("count must be between 1 and %d, got %d", engine.MaxEntityCount, count)
	}
	if seed == 0 {
		return fmt.Errorf("seed must be non-zero")
	}

	rng := engine.NewRandom(seed)
	neutral := engine.Objective{Frequency: engine.NeutralFrequency, Power: engine.NeutralPower}

	fmt.Fprintf(out, "Seed %d, neutral %d MHz / %d W\n", seed, neutral.Frequency, neutral.Power)
	total := 0
	for i := 0; i < count; i++ {
		o := engine.GenerateObjective(rng)
		steps := engine.StepsToObjective(neutral, o, engine.FrequencyGridStep, engine.PowerGridStep)
		total += steps
		fmt.Fprintf(out, "[%d] %4d MHz / %3d W  %2d steps\n", i, o.Frequency, o.Power, steps)
	}
	fmt.Fprintf(out, "Total: %d steps\n", total)
	return nil
}
