package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Details holds informational lines; otherwise Errors
// holds what was wrong.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Details  []string
	Warnings []string
}

func configFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("finding config files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no config files in %s", dir)
	}
	return files, nil
}

// validateConfig loads a mission config through the engine's own parser and
// adds playability notes for its kind.
func validateConfig(filePath string) ValidationResult {
	result := ValidationResult{File: filepath.Base(filePath), Valid: true}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("Failed to read file: %v", err))
		return result
	}

	config, err := engine.ParseMissionConfig(data)
	if err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Details = append(result.Details,
		fmt.Sprintf("✓ Name: %s", config.Name),
		fmt.Sprintf("✓ Kind: %s (%s tolerance)", config.Kind, config.ToleranceMode))

	switch config.Kind {
	case engine.Alignment:
		describeAlignment(&result, config)
	case engine.Diagnosis:
		describeDiagnosis(&result, config.Diagnosis)
	case engine.Deployment:
		describeDeployment(&result, config)
	}
	return result
}

func describeAlignment(result *ValidationResult, config *engine.MissionConfig) {
	a := config.Alignment
	params := make([]engine.Parameter, len(a.Parameters))
	hidden := 0
	for i, p := range a.Parameters {
		params[i] = engine.Parameter{Name: p.Name, Min: p.Min, Max: p.Max, Value: p.Initial, Target: p.Target}
		if p.Hidden {
			hidden++
		}
	}

	result.Details = append(result.Details,
		fmt.Sprintf("✓ Parameters: %d (%d hidden)", len(params), hidden),
		fmt.Sprintf("✓ Commit at quality %d, tolerance ±%g, %d message(s)", a.CommitThresholdValue(), a.ToleranceValue(), a.MessagesRequired))

	score, err := engine.Scorer{Tolerance: a.ToleranceValue(), Mode: config.ToleranceMode}.Score(params)
	if err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("Could not score initial values: %v", err))
		return
	}
	result.Details = append(result.Details, fmt.Sprintf("✓ Initial quality: %d", score.Quality))
	if score.Quality >= a.CommitThresholdValue() {
		result.Warnings = append(result.Warnings, "Initial values already meet the commit threshold")
	}
}

func describeDiagnosis(result *ValidationResult, d *engine.DiagnosisConfig) {
	result.Details = append(result.Details,
		fmt.Sprintf("✓ Anomalies: %d", len(d.Anomalies)),
		fmt.Sprintf("✓ Scan: %dms, messages shown for %dms", d.ScanDurationMs, d.MessageDurationMs),
		fmt.Sprintf("✓ Options: %d (correct: %d)", len(d.Options), d.CorrectIndex))
	if len(d.Feedback) == 0 {
		result.Warnings = append(result.Warnings, "No per-option feedback configured")
	}
}

func describeDeployment(result *ValidationResult, config *engine.MissionConfig) {
	d := config.Deployment
	result.Details = append(result.Details,
		fmt.Sprintf("✓ Satellites: %s", strings.Join(d.EntityNames, ", ")),
		fmt.Sprintf("✓ Window: %dms (low time under %dms)", d.DurationMs, d.LowTimeThresholdMs))

	if len(d.Objectives) == 0 {
		seed := "clock"
		if config.Seed != 0 {
			seed = fmt.Sprint(config.Seed)
		}
		result.Details = append(result.Details, fmt.Sprintf("✓ Objectives: sampled (seed %s)", seed))
		return
	}

	neutral := engine.Objective{Frequency: d.NeutralFrequency, Power: d.NeutralPower}
	total := 0
	for _, o := range d.Objectives {
		total += engine.StepsToObjective(neutral, o, d.FrequencyStep, d.PowerStep)
	}
	result.Details = append(result.Details, fmt.Sprintf("✓ Objectives: pinned, %d adjustment steps from neutral", total))
}

// runValidate prints a report per file and fails if any file is invalid
func runValidate(out io.Writer, files []string) error {
	var errs error
	for _, file := range files {
		result := validateConfig(file)

		fmt.Fprintf(out, "\n%s %s\n", strings.Repeat("=", 20), result.File)
		if result.Valid {
			fmt.Fprintln(out, "✅ VALID")
			for _, line := range result.Details {
				fmt.Fprintln(out, "  "+line)
			}
			for _, w := range result.Warnings {
				fmt.Fprintln(out, "  ⚠️  "+w)
			}
			continue
		}

		fmt.Fprintln(out, "❌ INVALID")
		for _, e := range result.Errors {
			fmt.Fprintln(out, "  ❌ "+e)
			errs = multierr.Append(errs, fmt.Errorf("%s: %s", result.File, e))
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 40))
	if errs != nil {
		fmt.Fprintln(out, "❌ Some configurations have errors")
		return errs
	}
	fmt.Fprintln(out, "✅ All configurations are valid!")
	return nil
}
