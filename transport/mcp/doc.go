// Package mcp exposes the mission REST API as Model Context Protocol tools.
//
// The Client is a thin proxy: every tool call becomes one REST request and
// the JSON response is rendered as text an agent can read.
//
// MCP Tools:
//   - create_session, list_sessions, get_session: session management
//   - mission_state: current snapshot of a mission
//   - set_parameter, commit: alignment commands
//   - start_scan, claim, dismiss_message, submit_answer: diagnosis commands
//   - select_entity, adjust_frequency, adjust_power, apply: deployment commands
//   - tick: advance the logical clock
//   - batch: several commands in one call, stopping at the first rejection
//   - reset_mission, command_history
//   - list_configs, mission_instructions
//
// A rejected command is not a tool error. Its result, with the error kind
// and the unchanged snapshot, is returned as regular text so the agent can
// correct course. Transport failures and unknown sessions are tool errors.
//
// Transport Modes:
//
//	// Stdio
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP, mounted next to the REST API
//	client.GetMCPServer().HandleMessage(ctx, body)
package mcp
