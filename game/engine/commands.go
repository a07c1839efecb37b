package engine

import (
	"fmt"
	"strings"
)

// CommandType names a mission command
type CommandType string

const (
	CmdSetParameter    CommandType = "set_parameter"
	CmdCommit          CommandType = "commit"
	CmdStartScan       CommandType = "start_scan"
	CmdClaim           CommandType = "claim"
	CmdDismissMessage  CommandType = "dismiss_message"
	CmdSubmitAnswer    CommandType = "submit_answer"
	CmdSelectEntity    CommandType = "select_entity"
	CmdAdjustFrequency CommandType = "adjust_frequency"
	CmdAdjustPower     CommandType = "adjust_power"
	CmdApply           CommandType = "apply"
	CmdTick            CommandType = "tick"
)

var commandKinds = map[CommandType]MissionKind{
	CmdSetParameter:    Alignment,
	CmdCommit:          Alignment,
	CmdStartScan:       Diagnosis,
	CmdClaim:           Diagnosis,
	CmdDismissMessage:  Diagnosis,
	CmdSubmitAnswer:    Diagnosis,
	CmdSelectEntity:    Deployment,
	CmdAdjustFrequency: Deployment,
	CmdAdjustPower:     Deployment,
	CmdApply:           Deployment,
	CmdTick:            "", // every mission
}

// Command is a serialisable mission command. Only the fields its Type uses
// are read.
type Command struct {
	Type    CommandType `json:"type"`
	Name    string      `json:"name,omitempty"`
	Value   float64     `json:"value,omitempty"`
	Index   int         `json:"index,omitempty"`
	Delta   int         `json:"delta,omitempty"`
	DeltaMs int64       `json:"delta_ms,omitempty"`
}

func (c Command) String() string {
	switch c.Type {
	case CmdSetParameter:
		return fmt.Sprintf("%s %s=%v", c.Type, c.Name, c.Value)
	case CmdClaim, CmdSubmitAnswer, CmdSelectEntity:
		return fmt.Sprintf("%s %d", c.Type, c.Index)
	case CmdAdjustFrequency, CmdAdjustPower:
		return fmt.Sprintf("%s %+d", c.Type, c.Delta)
	case CmdTick:
		return fmt.Sprintf("%s %dms", c.Type, c.DeltaMs)
	}
	return string(c.Type)
}

// ParseCommandType normalises s and checks it names a known command
func ParseCommandType(s string) (CommandType, error) {
	t := CommandType(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := commandKinds[t]; !ok {
		return "", fmt.Errorf("%w: unknown command %q", ErrUnsupportedCommand, s)
	}
	return t, nil
}

// CommandsFor lists the commands a mission kind accepts
func CommandsFor(kind MissionKind) []CommandType {
	var out []CommandType
	for _, t := range []CommandType{
		CmdSetParameter, CmdCommit,
		CmdStartScan, CmdClaim, CmdDismissMessage, CmdSubmitAnswer,
		CmdSelectEntity, CmdAdjustFrequency, CmdAdjustPower, CmdApply,
		CmdTick,
	} {
		if k := commandKinds[t]; k == "" || k == kind {
			out = append(out, t)
		}
	}
	return out
}

// Outcome tells whether a command changed state
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeIgnored  Outcome = "ignored"
	OutcomeRejected Outcome = "rejected"
)

// Result is returned by every command
type Result struct {
	Outcome Outcome `json:"outcome"`
	Phase   Phase   `json:"phase"`
	Events  []Event `json:"events,omitempty"`
}
