package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
	"github.com/wricardo/mcp-training/satmissions/game/service"
)

// solvedScore is close enough to a perfect parameter score to stop refining
const solvedScore = 99.0

// apiClient drives one session over the REST API
type apiClient struct {
	baseURL   string
	sessionID string
	client    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, err
}

func (c *apiClient) sessionPath(suffix string) string {
	return "/api/sessions/" + url.PathEscape(c.sessionID) + suffix
}

func (c *apiClient) CreateSession(ctx context.Context, configID string) (*engine.Snapshot, error) {
	status, body, err := c.do(ctx, http.MethodPost, "/api/sessions", map[string]string{"config_id": configID})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("create session failed: %d - %s", status, strings.TrimSpace(string(body)))
	}

	var info service.SessionInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("parse session response: %w", err)
	}
	c.sessionID = info.ID
	return &info.Snapshot, nil
}

func (c *apiClient) Snapshot(ctx context.Context) (*engine.Snapshot, error) {
	status, body, err := c.do(ctx, http.MethodGet, c.sessionPath("/snapshot"), nil)
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get snapshot failed: %d - %s", status, strings.TrimSpace(string(body)))
	}

	var snap engine.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// Send executes one command. A rejected command is returned as a result,
// not an error.
func (c *apiClient) Send(ctx context.Context, cmd engine.Command) (*service.CommandResult, error) {
	status, body, err := c.do(ctx, http.MethodPost, c.sessionPath("/commands"), cmd)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd.String(), err)
	}

	var result service.CommandResult
	if jsonErr := json.Unmarshal(body, &result); jsonErr != nil || result.Outcome == "" {
		return nil, fmt.Errorf("send %s failed: %d - %s", cmd.String(), status, strings.TrimSpace(string(body)))
	}
	return &result, nil
}

// autopilot plays a mission to a terminal phase using only what the
// snapshot reveals
type autopilot struct {
	client   *apiClient
	out      io.Writer
	maxSteps int
	steps    int
	tried    map[int]bool
}

func (p *autopilot) send(ctx context.Context, cmd engine.Command) (*engine.Snapshot, error) {
	if p.steps >= p.maxSteps {
		return nil, fmt.Errorf("gave up after %d commands", p.steps)
	}
	p.steps++

	result, err := p.client.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(p.out, "%3d. %s → %s (%s)", p.steps, cmd.String(), result.Outcome, result.Phase)
	if result.Kind != "" {
		fmt.Fprintf(p.out, " [%s]", result.Kind)
	}
	fmt.Fprintln(p.out)
	return &result.Snapshot, nil
}

func (p *autopilot) Run(ctx context.Context, snap *engine.Snapshot) (*engine.Snapshot, error) {
	var err error
	for !snap.Terminal {
		if err := ctx.Err(); err != nil {
			return snap, err
		}
		switch {
		case snap.Alignment != nil:
			snap, err = p.alignStep(ctx, snap)
		case snap.Diagnosis != nil:
			snap, err = p.diagnoseStep(ctx, snap)
		case snap.Deployment != nil:
			snap, err = p.deployStep(ctx, snap)
		default:
			return snap, fmt.Errorf("snapshot for %s has no mission view", snap.Kind)
		}
		if err != nil {
			return snap, err
		}
	}
	return snap, nil
}

// alignStep fixes the worst parameter. Visible targets are set directly;
// hidden ones are swept until the score reveals the distance.
func (p *autopilot) alignStep(ctx context.Context, snap *engine.Snapshot) (*engine.Snapshot, error) {
	a := snap.Alignment
	if a.CanCommit {
		return p.send(ctx, engine.Command{Type: engine.CmdCommit})
	}

	worst := -1
	for i, param := range a.Parameters {
		if param.Score < solvedScore && (worst < 0 || param.Score < a.Parameters[worst].Score) {
			worst = i
		}
	}
	if worst < 0 {
		return nil, fmt.Errorf("alignment stuck at quality %d below %d", a.Quality, a.CommitThreshold)
	}
	param := a.Parameters[worst]

	switch {
	case param.Target != nil:
		return p.setParameter(ctx, param.Name, *param.Target)
	case param.Score > 0:
		return p.refine(ctx, param, a.Tolerance)
	default:
		return p.sweep(ctx, param, a.Tolerance)
	}
}

func (p *autopilot) setParameter(ctx context.Context, name string, value float64) (*engine.Snapshot, error) {
	return p.send(ctx, engine.Command{Type: engine.CmdSetParameter, Name: name, Value: value})
}

func parameterScore(snap *engine.Snapshot, name string) float64 {
	for _, param := range snap.Alignment.Parameters {
		if param.Name == name {
			return param.Score
		}
	}
	return 0
}

// refine derives the distance to a hidden target from the score and tries
// both directions
func (p *autopilot) refine(ctx context.Context, param engine.ParameterView, tolerance float64) (*engine.Snapshot, error) {
	diff := (engine.MaxQuality - param.Score) / engine.MaxQuality * tolerance
	snap, err := p.setParameter(ctx, param.Name, param.Value+diff)
	if err != nil || snap.Terminal || parameterScore(snap, param.Name) >= solvedScore {
		return snap, err
	}
	return p.setParameter(ctx, param.Name, param.Value-diff)
}

// sweep probes the parameter range at tolerance-sized steps, then at unit
// steps, until the score moves off zero
func (p *autopilot) sweep(ctx context.Context, param engine.ParameterView, tolerance float64) (*engine.Snapshot, error) {
	steps := []float64{1}
	if tolerance > 1 {
		steps = []float64{tolerance, 1}
	}
	for _, step := range steps {
		for v := param.Min; v <= param.Max; v += step {
			snap, err := p.setParameter(ctx, param.Name, v)
			if err != nil {
				return nil, err
			}
			if parameterScore(snap, param.Name) > 0 {
				return snap, nil
			}
		}
	}
	return nil, fmt.Errorf("no value of %s in [%g, %g] scores above zero", param.Name, param.Min, param.Max)
}

func (p *autopilot) diagnoseStep(ctx context.Context, snap *engine.Snapshot) (*engine.Snapshot, error) {
	d := snap.Diagnosis
	switch {
	case d.BlockingMessage != "":
		return p.send(ctx, engine.Command{Type: engine.CmdDismissMessage})

	case d.AnswerEnabled:
		for i := range d.Options {
			if i != d.Disabled && !p.tried[i] {
				p.tried[i] = true
				return p.send(ctx, engine.Command{Type: engine.CmdSubmitAnswer, Index: i})
			}
		}
		return nil, fmt.Errorf("every answer was tried")

	case d.ClaimEnabled:
		for _, a := range d.Anomalies {
			if a.Visible && !a.Found {
				return p.send(ctx, engine.Command{Type: engine.CmdClaim, Index: a.Index})
			}
		}

	case !d.Revealed && !d.Scanning && len(snap.Pending) == 0:
		return p.send(ctx, engine.Command{Type: engine.CmdStartScan})
	}

	if len(snap.Pending) > 0 {
		return p.tickTo(ctx, snap, snap.Pending[0].DueMs)
	}
	return nil, fmt.Errorf("diagnosis stuck in phase %s", snap.Phase)
}

func (p *autopilot) tickTo(ctx context.Context, snap *engine.Snapshot, dueMs int64) (*engine.Snapshot, error) {
	delta := int64(math.Max(1, float64(dueMs-snap.NowMs)))
	return p.send(ctx, engine.Command{Type: engine.CmdTick, DeltaMs: delta})
}

// deployStep follows the hint for the selected satellite and otherwise
// selects the next unconfigured one
func (p *autopilot) deployStep(ctx context.Context, snap *engine.Snapshot) (*engine.Snapshot, error) {
	d := snap.Deployment
	if d.Hint != nil {
		return p.send(ctx, *d.Hint)
	}
	for _, e := range d.Entities {
		if !e.Configured && e.Index != d.Selected {
			return p.send(ctx, engine.Command{Type: engine.CmdSelectEntity, Index: e.Index})
		}
	}
	return nil, fmt.Errorf("deployment stuck with %d/%d configured", d.ConfiguredCount, d.Total)
}

type autopilotOptions struct {
	URL      string
	Config   string
	Session  string
	MaxSteps int
}

func runAutopilot(ctx context.Context, out io.Writer, opts autopilotOptions) error {
	client := newAPIClient(opts.URL)

	var snap *engine.Snapshot
	var err error
	if opts.Session != "" {
		client.sessionID = opts.Session
		snap, err = client.Snapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Resuming session %s\n", client.sessionID)
	} else {
		snap, err = client.CreateSession(ctx, opts.Config)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Session created: %s\n", client.sessionID)
	}
	fmt.Fprintf(out, "Mission: %s (%s) | Phase: %s\n", snap.ConfigName, snap.Kind, snap.Phase)

	pilot := &autopilot{client: client, out: out, maxSteps: opts.MaxSteps, tried: map[int]bool{}}
	final, err := pilot.Run(ctx, snap)
	if err != nil {
		return fmt.Errorf("session %s: %w", client.sessionID, err)
	}

	fmt.Fprintf(out, "Finished in %d commands: phase=%s time=%dms\n", pilot.steps, final.Phase, final.NowMs)
	if final.Phase == engine.PhaseExpired {
		return fmt.Errorf("mission expired")
	}
	return nil
}
