package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"

	"github.com/wricardo/mcp-training/satmissions/game/engine"
	"github.com/wricardo/mcp-training/satmissions/game/service"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// APIError is a non-2xx response from the REST API
type APIError struct {
	Status  int
	Message string
	Kind    string
	Body    []byte
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API error: %d", e.Status)
	}
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
	}
	return e.Message
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Satellite Missions",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Satellite Missions - MCP Interface

This is a thin client that proxies all requests to the REST API server.

MISSIONS:
- alignment: tune angle, power and encoding until link quality reaches the commit threshold, then commit
- diagnosis: scan, claim every anomaly, then answer the question
- deployment: select each satellite, step frequency and power onto its objective and apply before time runs out

START HERE:
1. list_configs to see the available missions
2. create_session with a config_id
3. mission_state to read the mission, then issue commands

Every command tool takes a session_id and returns the outcome (applied, ignored or rejected) plus the updated mission.
Use batch to send several commands at once; it stops at the first rejection.
Call mission_instructions for the full rules.`),
	)

	c.registerTools()
}

func sessionProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// commandTool describes one MCP tool that sends a single mission command
type commandTool struct {
	cmd         engine.CommandType
	description string
	properties  map[string]interface{}
	required    []string
}

var commandTools = []commandTool{
	{
		cmd:         engine.CmdSetParameter,
		description: "Alignment: set a tunable parameter (angle, power, encoding) to a value. Values are clamped to the parameter range.",
		properties: map[string]interface{}{
			"name": map[string]interface{}{
				"type":        "string",
				"description": "Parameter name, e.g. angle",
			},
			"value": map[string]interface{}{
				"type":        "number",
				"description": "New value",
			},
		},
		required: []string{"name", "value"},
	},
	{
		cmd:         engine.CmdCommit,
		description: "Alignment: send a message. Rejected while quality is below the commit threshold.",
	},
	{
		cmd:         engine.CmdStartScan,
		description: "Diagnosis: start the scanner. Anomalies become visible once the scan completes.",
	},
	{
		cmd:         engine.CmdClaim,
		description: "Diagnosis: claim a visible anomaly by index to read its diagnostic message",
		properties: map[string]interface{}{
			"index": map[string]interface{}{
				"type":        "integer",
				"description": "Anomaly index (0-based)",
			},
		},
		required: []string{"index"},
	},
	{
		cmd:         engine.CmdDismissMessage,
		description: "Diagnosis: dismiss the diagnostic message currently on screen",
	},
	{
		cmd:         engine.CmdSubmitAnswer,
		description: "Diagnosis: answer the question by option index once every anomaly is found",
		properties: map[string]interface{}{
			"index": map[string]interface{}{
				"type":        "integer",
				"description": "Option index (0-based)",
			},
		},
		required: []string{"index"},
	},
	{
		cmd:         engine.CmdSelectEntity,
		description: "Deployment: select a satellite to configure. Its stored draft becomes the working buffer.",
		properties: map[string]interface{}{
			"index": map[string]interface{}{
				"type":        "integer",
				"description": "Satellite index (0-based)",
			},
		},
		required: []string{"index"},
	},
	{
		cmd:         engine.CmdAdjustFrequency,
		description: "Deployment: move the frequency draft by delta steps (positive or negative)",
		properties: map[string]interface{}{
			"delta": map[string]interface{}{
				"type":        "integer",
				"description": "Number of frequency steps",
			},
		},
		required: []string{"delta"},
	},
	{
		cmd:         engine.CmdAdjustPower,
		description: "Deployment: move the power draft by delta steps (positive or negative)",
		properties: map[string]interface{}{
			"delta": map[string]interface{}{
				"type":        "integer",
				"description": "Number of power steps",
			},
		},
		required: []string{"delta"},
	},
	{
		cmd:         engine.CmdApply,
		description: "Deployment: apply the draft to the selected satellite. Rejected when it does not match the objective exactly.",
	},
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Create a new mission session from a config",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"config_id": map[string]interface{}{
					"type":        "string",
					"description": "Config to use, e.g. alignment, diagnosis or deployment (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List active mission sessions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"kind": map[string]interface{}{
					"type":        "string",
					"description": "Only sessions of this mission kind (optional)",
				},
			},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	// Mission operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "mission_state",
		Description: "Get the current mission snapshot",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleMissionState)

	for _, tool := range commandTools {
		properties := map[string]interface{}{"session_id": sessionProperty()}
		for name, schema := range tool.properties {
			properties[name] = schema
		}
		c.mcpServer.AddTool(mcp.Tool{
			Name:        string(tool.cmd),
			Description: tool.description,
			InputSchema: mcp.ToolInputSchema{
				Type:       "object",
				Properties: properties,
				Required:   append([]string{"session_id"}, tool.required...),
			},
		}, c.commandHandler(tool.cmd))
	}

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "tick",
		Description: "Advance the mission clock. Scans, messages, answer delays and the deployment countdown move with it.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"delta_ms": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Milliseconds to advance (default %d)", engine.DefaultTickMs),
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleTick)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "batch",
		Description: fmt.Sprintf("Run up to %d commands in order. Stops at the first rejected command or when the mission ends.", engine.MaxBatchCommands),
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"commands": map[string]interface{}{
					"type":        "array",
					"description": `Commands, e.g. [{"type":"set_parameter","name":"angle","value":75},{"type":"commit"}]`,
					"items": map[string]interface{}{
						"type": "object",
						"properties": map[string]interface{}{
							"type":     map[string]interface{}{"type": "string"},
							"name":     map[string]interface{}{"type": "string"},
							"value":    map[string]interface{}{"type": "number"},
							"index":    map[string]interface{}{"type": "integer"},
							"delta":    map[string]interface{}{"type": "integer"},
							"delta_ms": map[string]interface{}{"type": "integer"},
						},
						"required": []string{"type"},
					},
				},
				"reset": map[string]interface{}{
					"type":        "boolean",
					"description": "Reset the mission before running the commands",
				},
			},
			Required: []string{"session_id", "commands"},
		},
	}, c.handleBatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_mission",
		Description: "Reset the mission to its initial state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "command_history",
		Description: "Get the paginated command history of a session",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number (default 1)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Commands per page (default 20)",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"description": "asc or desc (default desc)",
				},
			},
			Required: []string{"session_id"},
		},
	}, c.handleCommandHistory)

	// Configs and help
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_configs",
		Description: "List available mission configurations",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListConfigs)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "mission_instructions",
		Description: "Get the rules of every mission kind",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleMissionInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		apiErr.Body, _ = io.ReadAll(resp.Body)
		var errResp struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(apiErr.Body, &errResp) == nil {
			apiErr.Message = errResp.Error
			apiErr.Kind = errResp.Kind
		}
		return apiErr
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func sessionPath(sessionID, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func requireSession(args map[string]interface{}) (string, error) {
	sessionID := strings.TrimSpace(cast.ToString(args["session_id"]))
	if sessionID == "" {
		return "", errors.New("session_id is required")
	}
	return sessionID, nil
}

// buildCommand coerces tool arguments into a command of type t
func buildCommand(t engine.CommandType, args map[string]interface{}) (engine.Command, error) {
	cmd := engine.Command{Type: t}
	var err error
	switch t {
	case engine.CmdSetParameter:
		cmd.Name = strings.TrimSpace(cast.ToString(args["name"]))
		if cmd.Name == "" {
			return cmd, errors.New("name is required")
		}
		if _, ok := args["value"]; !ok {
			return cmd, errors.New("value is required")
		}
		if cmd.Value, err = cast.ToFloat64E(args["value"]); err != nil {
			return cmd, fmt.Errorf("value: %w", err)
		}
	case engine.CmdClaim, engine.CmdSubmitAnswer, engine.CmdSelectEntity:
		if _, ok := args["index"]; !ok {
			return cmd, errors.New("index is required")
		}
		if cmd.Index, err = cast.ToIntE(args["index"]); err != nil {
			return cmd, fmt.Errorf("index: %w", err)
		}
	case engine.CmdAdjustFrequency, engine.CmdAdjustPower:
		if _, ok := args["delta"]; !ok {
			return cmd, errors.New("delta is required")
		}
		if cmd.Delta, err = cast.ToIntE(args["delta"]); err != nil {
			return cmd, fmt.Errorf("delta: %w", err)
		}
	case engine.CmdTick:
		if v, ok := args["delta_ms"]; ok {
			if cmd.DeltaMs, err = cast.ToInt64E(v); err != nil {
				return cmd, fmt.Errorf("delta_ms: %w", err)
			}
		}
	}
	return cmd, nil
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]string{}
	if configID := cast.ToString(args["config_id"]); configID != "" {
		body["config_id"] = configID
	} else if configName := cast.ToString(args["config_name"]); configName != "" {
		body["config_id"] = configName
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, http.MethodPost, "/api/sessions", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created session\n" + formatSessionInfo(&info)), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	path := "/api/sessions"
	if kind := cast.ToString(args["kind"]); kind != "" {
		path += "?kind=" + url.QueryEscape(kind)
	}

	var response struct {
		Count    int                    `json:"count"`
		Sessions []*service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Sessions) == 0 {
		return mcp.NewToolResultText("No active sessions"), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions (%d):\n", response.Count)
	for _, info := range response.Sessions {
		fmt.Fprintf(&b, "• %s  %s (%s)  phase=%s  last access %s\n",
			info.ID, info.ConfigName, info.Kind, info.Snapshot.Phase,
			info.LastAccessedAt.Format("2006-01-02 15:04:05"))
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSession(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(sessionID, ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleMissionState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSession(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var snap engine.Snapshot
	if err := c.apiCall(ctx, http.MethodGet, sessionPath(sessionID, "/snapshot"), nil, &snap); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatSnapshot(&snap)), nil
}

// commandHandler returns the tool handler sending a single command of type t
func (c *Client) commandHandler(t engine.CommandType) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(request)
		sessionID, err := requireSession(args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		cmd, err := buildCommand(t, args)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return c.sendCommand(ctx, sessionPath(sessionID, "/commands"), cmd)
	}
}

func (c *Client) handleTick(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cmd, err := buildCommand(engine.CmdTick, args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := map[string]int64{"delta_ms": cmd.DeltaMs}
	return c.sendCommand(ctx, sessionPath(sessionID, "/tick"), body)
}

// sendCommand posts body and renders the command result. A rejected command
// still carries a result; it is shown as the tool output, not a tool error.
func (c *Client) sendCommand(ctx context.Context, path string, body interface{}) (*mcp.CallToolResult, error) {
	var result service.CommandResult
	err := c.apiCall(ctx, http.MethodPost, path, body, &result)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status == http.StatusNotFound ||
			json.Unmarshal(apiErr.Body, &result) != nil || result.Outcome != engine.OutcomeRejected {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	return mcp.NewToolResultText(formatCommandResult(&result)), nil
}

func (c *Client) handleBatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, ok := args["commands"].([]interface{})
	if !ok {
		return mcp.NewToolResultError("commands must be an array"), nil
	}
	commands := make([]engine.Command, 0, len(raw))
	for i, item := range raw {
		fields, ok := item.(map[string]interface{})
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("command %d: must be an object", i+1)), nil
		}
		t, err := engine.ParseCommandType(cast.ToString(fields["type"]))
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("command %d: %v", i+1, err)), nil
		}
		cmd, err := buildCommand(t, fields)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("command %d: %v", i+1, err)), nil
		}
		commands = append(commands, cmd)
	}

	body := map[string]interface{}{
		"commands": commands,
		"reset":    cast.ToBool(args["reset"]),
	}

	var result service.BatchResult
	if err := c.apiCall(ctx, http.MethodPost, sessionPath(sessionID, "/batch"), body, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatBatchResult(sessionID, &result)), nil
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := requireSession(arguments(request))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var response struct {
		Message  string           `json:"message"`
		Snapshot *engine.Snapshot `json:"snapshot"`
	}
	if err := c.apiCall(ctx, http.MethodPost, sessionPath(sessionID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSnapshot(response.Snapshot))), nil
}

func (c *Client) handleCommandHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, err := requireSession(args)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	query := url.Values{}
	if page := cast.ToInt(args["page"]); page > 0 {
		query.Set("page", fmt.Sprint(page))
	}
	if limit := cast.ToInt(args["limit"]); limit > 0 {
		query.Set("limit", fmt.Sprint(limit))
	}
	if order := cast.ToString(args["order"]); order != "" {
		query.Set("order", order)
	}
	path := sessionPath(sessionID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, http.MethodGet, path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListConfigs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var configs []service.ConfigInfo
	if err := c.apiCall(ctx, http.MethodGet, "/api/configs", nil, &configs); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Configurations:\n\n")
	for _, config := range configs {
		fmt.Fprintf(&b, "• %s (%s)\n  %s\n  config_id: %s\n\n",
			config.Name, config.Kind, config.Description, config.ConfigID)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleMissionInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(missionInstructions), nil
}

const missionInstructions = `🛰️ Satellite Missions - Complete Instructions

Every mission is driven by commands. Each command returns an outcome:
• applied  - the mission changed
• ignored  - the command was valid but had no effect right now
• rejected - the command broke a rule; the error kind says which

Time only moves when the clock ticks. The server may tick every running
mission on its own; otherwise use the tick tool.

ALIGNMENT (antenna tuning):
• Parameters: angle (0-90), power (0-100), encoding (0-100)
• Each parameter scores 0-100 by its distance to a target; quality is the average
• A parameter is within tolerance when its distance is at most the tolerance
• commit sends a message; it is rejected (insufficient_quality) below the commit threshold
• Send the required number of messages to complete the mission
• Tip: targets are shown when not hidden, and "diff" tells you how far off each value is

DIAGNOSIS (anomaly hunt):
• start_scan runs the scanner; anomalies appear when the scan completes
• claim an anomaly by index to read its diagnostic message
• dismiss_message closes the message early; it also closes on its own
• After every anomaly is found the question appears
• submit_answer with an option index; a wrong answer disables that option for a short delay
• The correct answer completes the mission

DEPLOYMENT (timed configuration):
• The countdown runs from the start of the mission
• select_entity picks a satellite and loads its draft
• adjust_frequency and adjust_power move the draft by whole steps
• apply is rejected unless the draft matches the satellite's objective exactly
  (objective_mismatch names the fields that differ)
• A configured satellite cannot be reconfigured (already_configured)
• Configure every satellite before the countdown expires
• Tip: the hint field names the next adjustment toward the selected objective

STRATEGY:
1. Read mission_state before acting
2. Use batch for predictable sequences; it stops at the first rejection
3. Check command_history when an outcome surprises you

Good luck, mission control!`
