package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
)

type replayOptions struct {
	Seed         int64
	StopOnReject bool
	JSON         bool
}

// loadReplayConfig accepts a built-in mission kind or a config file path
func loadReplayConfig(name string) (*engine.MissionConfig, error) {
	if config := engine.DefaultMissionConfig(engine.MissionKind(name)); config != nil {
		return config, nil
	}
	return engine.LoadMissionConfig(name)
}

// parseScript reads either a bare command array or {"commands": [...]}
func parseScript(data []byte) ([]engine.Command, error) {
	data = bytes.TrimSpace(data)
	var commands []engine.Command
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &commands); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
	} else {
		var script struct {
			Commands []engine.Command `json:"commands"`
		}
		if err := json.Unmarshal(data, &script); err != nil {
			return nil, fmt.Errorf("parse script: %w", err)
		}
		commands = script.Commands
	}
	if len(commands) == 0 {
		return nil, fmt.Errorf("script has no commands")
	}
	return commands, nil
}

func runReplay(ctx context.Context, out io.Writer, configName, scriptPath string, opts replayOptions) error {
	config, err := loadReplayConfig(configName)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configName, err)
	}
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	commands, err := parseScript(data)
	if err != nil {
		return err
	}

	var rng engine.Random
	if opts.Seed != 0 {
		rng = engine.NewRandom(opts.Seed)
	}
	eng, err := engine.NewEngineWithRandom(config, rng)
	if err != nil {
		return err
	}

	if !opts.JSON {
		fmt.Fprintf(out, "Mission: %s (%s)\n", config.Name, config.Kind)
	}
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			return err
		}
		if eng.IsTerminal() {
			if !opts.JSON {
				fmt.Fprintf(out, "Mission ended before step %d\n", i+1)
			}
			break
		}

		res, execErr := eng.Execute(cmd)
		if !opts.JSON {
			fmt.Fprintf(out, "%d. %s → %s (%s)", i+1, cmd.String(), res.Outcome, res.Phase)
			if execErr != nil {
				fmt.Fprintf(out, " [%s] %v", engine.ErrorKind(execErr), execErr)
			}
			fmt.Fprintln(out)
		}
		if execErr != nil && opts.StopOnReject {
			break
		}
	}

	snap := eng.Snapshot()
	if opts.JSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}
	fmt.Fprintf(out, "Final: phase=%s terminal=%t time=%dms commands=%d\n",
		snap.Phase, snap.Terminal, snap.NowMs, snap.TotalCommands)
	if snap.Message != "" {
		fmt.Fprintf(out, "Message: %s\n", snap.Message)
	}
	return nil
}
