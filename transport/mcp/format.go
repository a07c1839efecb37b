package mcp

import (
	"fmt"
	"strings"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
	"github.com/wricardo/mcp-training/satmissions/game/service"
)

func formatSessionInfo(info *service.SessionInfo) string {
	return fmt.Sprintf("Session: %s\nConfig: %s (%s)\nCreated: %s\n\n%s",
		info.ID, info.ConfigName, info.Kind,
		info.CreatedAt.Format("2006-01-02 15:04:05"),
		formatSnapshot(&info.Snapshot))
}

func formatSnapshot(snap *engine.Snapshot) string {
	if snap == nil {
		return "No mission state available"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Mission: %s (%s) | Phase: %s | Time: %dms | Commands: %d\n",
		snap.ConfigName, snap.Kind, snap.Phase, snap.NowMs, snap.TotalCommands)

	switch {
	case snap.Alignment != nil:
		formatAlignment(&b, snap.Alignment)
	case snap.Diagnosis != nil:
		formatDiagnosis(&b, snap.Diagnosis)
	case snap.Deployment != nil:
		formatDeployment(&b, snap.Deployment)
	}

	if len(snap.Pending) > 0 {
		b.WriteString("\nPending:")
		for _, p := range snap.Pending {
			fmt.Fprintf(&b, " %s@%dms", p.Kind, p.DueMs)
		}
		b.WriteString("\n")
	}

	if snap.Terminal {
		switch snap.Phase {
		case engine.PhaseCompleted, engine.PhaseAnsweredCorrect:
			b.WriteString("\n🎉 MISSION COMPLETE")
		default:
			b.WriteString("\n💀 MISSION FAILED")
		}
	} else if len(snap.Commands) > 0 {
		names := make([]string, len(snap.Commands))
		for i, c := range snap.Commands {
			names[i] = string(c)
		}
		fmt.Fprintf(&b, "\nCommands: %s", strings.Join(names, ", "))
	}

	if snap.Message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", snap.Message)
	}

	return b.String()
}

func formatAlignment(b *strings.Builder, a *engine.AlignmentView) {
	fmt.Fprintf(b, "Quality: %d/100 (commit at %d) | Messages: %d/%d | Tolerance: ±%g\n\n",
		a.Quality, a.CommitThreshold, a.MessagesSent, a.MessagesRequired, a.Tolerance)
	for _, p := range a.Parameters {
		mark := "✗"
		if p.WithinTolerance {
			mark = "✓"
		}
		fmt.Fprintf(b, "%s %-10s %6.1f  [%g-%g]  score=%.0f", mark, p.Name, p.Value, p.Min, p.Max, p.Score)
		if p.Target != nil {
			fmt.Fprintf(b, "  target=%g", *p.Target)
		}
		if p.Diff != nil {
			fmt.Fprintf(b, "  diff=%+.1f", *p.Diff)
		}
		b.WriteString("\n")
	}
	if a.CanCommit {
		b.WriteString("\nReady to commit\n")
	} else if len(a.Failing) > 0 {
		fmt.Fprintf(b, "\nOut of tolerance: %s\n", strings.Join(a.Failing, ", "))
	}
}

func formatDiagnosis(b *strings.Builder, d *engine.DiagnosisView) {
	fmt.Fprintf(b, "Anomalies found: %d/%d", d.Discovered, d.Total)
	switch {
	case d.Scanning:
		b.WriteString(" | scanning...")
	case d.Revealed:
		b.WriteString(" | revealed")
	}
	b.WriteString("\n")

	for _, a := range d.Anomalies {
		switch {
		case a.Found:
			fmt.Fprintf(b, "  [%d] ✓ %s\n", a.Index, a.Label)
		case a.Visible:
			fmt.Fprintf(b, "  [%d] ? %s (claimable)\n", a.Index, a.Label)
		default:
			fmt.Fprintf(b, "  [%d] hidden\n", a.Index)
		}
	}

	if d.BlockingMessage != "" {
		fmt.Fprintf(b, "\n📟 %s\n", d.BlockingMessage)
	}

	if d.Question != "" {
		fmt.Fprintf(b, "\nQuestion: %s\n", d.Question)
		for i, opt := range d.Options {
			state := ""
			if i == d.Disabled {
				state = " (disabled)"
			}
			fmt.Fprintf(b, "  %d. %s%s\n", i, opt, state)
		}
		if d.WrongAnswers > 0 {
			fmt.Fprintf(b, "Wrong answers: %d\n", d.WrongAnswers)
		}
		if !d.AnswerEnabled && d.AdvanceAfterMs > 0 {
			fmt.Fprintf(b, "Answers re-enable at %dms\n", d.AdvanceAfterMs)
		}
	}
}

func formatDeployment(b *strings.Builder, d *engine.DeploymentView) {
	fmt.Fprintf(b, "Configured: %d/%d | Network quality: %d | Time left: %s",
		d.ConfiguredCount, d.Total, d.NetworkQuality, d.Remaining)
	b.WriteString("\n")
	if d.TimeRisk != "" {
		fmt.Fprintf(b, "Time risk: %s\n", d.TimeRisk)
	}
	b.WriteString("\n")

	for _, e := range d.Entities {
		marker := " "
		if e.Index == d.Selected {
			marker = "▶"
		}
		if e.Configured {
			fmt.Fprintf(b, "%s [%d] ✓ %s  %d MHz / %d W\n", marker, e.Index, e.Name, e.AppliedFrequency, e.AppliedPower)
		} else {
			fmt.Fprintf(b, "%s [%d]   %s\n", marker, e.Index, e.Name)
		}
	}

	fmt.Fprintf(b, "\nDraft: %d MHz / %d W (steps %d / %d)\n",
		d.Buffer.Frequency, d.Buffer.Power, d.FrequencyStep, d.PowerStep)
	if d.Objective != nil {
		fmt.Fprintf(b, "Objective: %d MHz / %d W | Steps remaining: %d\n",
			d.Objective.Frequency, d.Objective.Power, d.StepsRemaining)
	}
	if d.Hint != nil {
		fmt.Fprintf(b, "Hint: %s\n", d.Hint.String())
	}
}

func formatEvents(b *strings.Builder, events []engine.Event) {
	if len(events) == 0 {
		return
	}
	b.WriteString("Events:\n")
	for _, event := range events {
		if event.Message != "" {
			fmt.Fprintf(b, "- %s: %s\n", event.Type, event.Message)
		} else {
			fmt.Fprintf(b, "- %s\n", event.Type)
		}
	}
}

func formatCommandResult(result *service.CommandResult) string {
	var b strings.Builder
	switch result.Outcome {
	case engine.OutcomeApplied:
		fmt.Fprintf(&b, "✓ %s applied\n", result.Command.String())
	case engine.OutcomeIgnored:
		fmt.Fprintf(&b, "• %s ignored\n", result.Command.String())
	default:
		fmt.Fprintf(&b, "✗ %s rejected", result.Command.String())
		if result.Kind != "" {
			fmt.Fprintf(&b, " [%s]", result.Kind)
		}
		if result.Error != "" {
			fmt.Fprintf(&b, ": %s", result.Error)
		}
		b.WriteString("\n")
	}

	formatEvents(&b, result.Events)
	b.WriteString("\n")
	b.WriteString(formatSnapshot(&result.Snapshot))
	return b.String()
}

func formatBatchResult(sessionID string, result *service.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: %s • Config: %s\n", sessionID, result.Snapshot.ConfigName)
	fmt.Fprintf(&b, "Executed %d/%d commands (%d applied)\n", result.Executed, result.Requested, result.Applied)
	if result.Truncated {
		fmt.Fprintf(&b, "Truncated to the first %d commands\n", result.Limit)
	}
	if result.StopReason != "" {
		fmt.Fprintf(&b, "Stopped: %s at step %d\n", result.StopReason, result.StoppedOnStep)
	}

	if len(result.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, s := range result.Steps {
			fmt.Fprintf(&b, "%d. %s → %s (%s)", s.Idx, s.Command, s.Outcome, s.Phase)
			if s.Error != "" {
				fmt.Fprintf(&b, " error=%s", s.Error)
			}
			b.WriteString("\n")
		}
	}

	if len(result.Events) > 0 {
		b.WriteString("\n")
		formatEvents(&b, result.Events)
	}

	b.WriteString("\n")
	b.WriteString(formatSnapshot(&result.Snapshot))
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command History (Page %d/%d, %d total):\n",
		history.Page, history.TotalPages, history.TotalCommands)

	for _, record := range history.Commands {
		fmt.Fprintf(&b, "#%d %s → %s (%s) at %dms",
			record.Seq, record.Command.String(), record.Outcome, record.Phase, record.AtMs)
		if record.Error != "" {
			fmt.Fprintf(&b, " error=%s", record.Error)
		}
		b.WriteString("\n")
	}

	if history.HasNext || history.HasPrevious {
		b.WriteString("\n")
		if history.HasPrevious {
			b.WriteString("← Previous page available  ")
		}
		if history.HasNext {
			b.WriteString("Next page available →")
		}
		b.WriteString("\n")
	}
	return b.String()
}
