// Package session provides session management for the satellite missions server.
//
// The session package implements:
//   - Thread-safe session storage and retrieval
//   - Unique session ID generation
//   - File persistence of mission state across restarts
//   - Session cleanup and expiration
//
// Core Types:
//
// Manager stores sessions in memory and, when created with a persistence
// layer, saves them as JSON files and lazily reloads them on Get. Each
// service.Session owns its own engine.MissionEngine.
//
// Session Identifiers:
//
// Sessions use 4-character hex IDs unless the caller supplies one. IDs are
// case-insensitive and may not contain path separators or dots.
//
// Persistence:
//
// FilePersistence writes one file per session holding the config ID and the
// full engine.MissionState. Loading resolves the config again through the
// config manager, so edits to a config file apply to sessions restored
// afterwards.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions", configManager)
//	if err != nil {
//		return err
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//	if err := manager.LoadPersistedSessions(); err != nil {
//		log.Printf("some sessions failed to load: %v", err)
//	}
//	sess, err := manager.Create("", "alignment", missionConfig)
package session
