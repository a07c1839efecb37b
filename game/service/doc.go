// Package service provides the business logic layer for the satellite missions server.
//
// The service package implements:
//   - Multi-session mission management
//   - Command execution, batches and logical clock ticks
//   - Command history with pagination
//   - Configuration listing, loading and saving
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level mission operations.
// SessionManager handles session creation, retrieval, and lifecycle.
// ConfigManager manages mission configuration loading and validation.
// Notifier receives engine events and snapshots for push transports.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the mission engine. The engine is not safe for concurrent use, so every
// call that touches a session holds the service lock. Engine errors are
// returned unchanged (wrapped) so transports can classify them with
// engine.ErrorKind and engine.IsUserFacing.
//
// Usage:
//
//	sessionMgr := session.NewManager()
//	configMgr, _ := config.NewManager("configs")
//	svc := service.NewGameService(sessionMgr, configMgr,
//		service.WithNotifier(hub),
//		service.WithMetrics(collector))
//
//	info, err := svc.CreateSession(ctx, "deployment")
//	if err != nil {
//		return err
//	}
//
//	res, err := svc.Execute(ctx, info.ID, engine.Command{Type: engine.CmdSelectEntity, Index: 0})
//
// Time:
//
// Missions only advance through tick commands. ClockDriver issues them on a
// wall-clock ticker for every running session when the server enables it.
package service
