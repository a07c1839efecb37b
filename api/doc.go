// Package api provides the HTTP REST API for the satellite missions server.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session ({"config_id": "deployment"})
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=N&kind=K)
//   - GET /api/sessions/unified - Snapshots of several sessions at once
//   - GET /api/sessions/{id} - Get a session with its snapshot
//   - DELETE /api/sessions/{id} - Delete a session
//
// Mission Operations:
//   - GET /api/sessions/{id}/snapshot - Current snapshot
//   - POST /api/sessions/{id}/commands - Run one command
//   - POST /api/sessions/{id}/batch - Run up to 50 commands in order
//   - POST /api/sessions/{id}/tick - Advance the mission clock ({"delta_ms": 1000})
//   - POST /api/sessions/{id}/reset - Restart the mission
//   - GET /api/sessions/{id}/history - Paginated command history
//
// Configuration:
//   - GET /api/configs - List mission configurations
//   - GET /api/configs/{name} - Get one configuration
//   - POST /api/configs - Validate and save a configuration (?id= names the file)
//
// Plus GET /health, GET /metrics (Prometheus) and GET /ws?session=<id>.
//
// Commands are JSON objects naming their type and the fields it uses:
//
//	{"type": "set_parameter", "name": "angle", "value": 75}
//	{"type": "claim", "index": 2}
//	{"type": "adjust_power", "delta": -5}
//	{"type": "tick", "delta_ms": 1000}
//
// Error Handling:
//
// Errors are returned as JSON. Gameplay rejections answer 409, malformed
// commands 400 and unknown sessions or configs 404:
//
//	{"error": "entity already configured", "kind": "already_configured"}
//
// A rejected command still returns its full result, snapshot included.
package api
