// Command missionctl is the command line companion to the mission server.
//
// Offline subcommands validate config files, preview seeded objectives and
// replay command scripts against a fresh engine. The autopilot subcommand
// plays a session on a running server through the REST API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

const version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "missionctl: %v\n", err)
		os.Exit(1)
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "missionctl",
		Usage:   "inspect and exercise satellite mission configs",
		Version: version,
		Writer:  out,
		Commands: []*cli.Command{
			{
				Name:      "validate",
				Usage:     "validate mission config files",
				ArgsUsage: "[files...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "dir",
						Value: "configs",
						Usage: "directory scanned when no files are given",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					files := cmd.Args().Slice()
					if len(files) == 0 {
						found, err := configFiles(cmd.String("dir"))
						if err != nil {
							return err
						}
						files = found
					}
					return runValidate(out, files)
				},
			},
			{
				Name:  "objectives",
				Usage: "print the objectives a seed generates for deployment missions",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "seed", Value: 1, Usage: "random seed"},
					&cli.Int64Flag{Name: "count", Value: 2, Usage: "number of satellites"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runObjectives(out, cmd.Int64("seed"), int(cmd.Int64("count")))
				},
			},
			{
				Name:      "replay",
				Usage:     "run a JSON command script against a fresh mission",
				ArgsUsage: "<config> <script.json>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "seed", Usage: "override the config seed"},
					&cli.BoolFlag{Name: "stop-on-reject", Usage: "stop at the first rejected command"},
					&cli.BoolFlag{Name: "json", Usage: "print the final snapshot as JSON"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("replay needs a config and a script, got %d arguments", cmd.Args().Len())
					}
					return runReplay(ctx, out, cmd.Args().Get(0), cmd.Args().Get(1), replayOptions{
						Seed:         cmd.Int64("seed"),
						StopOnReject: cmd.Bool("stop-on-reject"),
						JSON:         cmd.Bool("json"),
					})
				},
			},
			{
				Name:  "autopilot",
				Usage: "play a mission to the end against a running server",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "mission server URL"},
					&cli.StringFlag{Name: "config", Value: "alignment", Usage: "config to start a new session with"},
					&cli.StringFlag{Name: "session", Usage: "resume an existing session instead"},
					&cli.Int64Flag{Name: "max-steps", Value: 500, Usage: "maximum commands to send"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runAutopilot(ctx, out, autopilotOptions{
						URL:      cmd.String("url"),
						Config:   cmd.String("config"),
						Session:  cmd.String("session"),
						MaxSteps: int(cmd.Int64("max-steps")),
					})
				},
			},
		},
	}
}
