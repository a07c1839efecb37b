// Package config provides configuration management for the satellite missions server.
//
// The config package handles:
//   - Loading mission configurations from JSON files
//   - Built-in configurations for every mission kind
//   - Configuration validation, listing and saving
//   - Server settings from YAML with environment overrides
//
// Mission Configurations:
//
// Mission configurations are stored as JSON files in the configs directory.
// Each one names a mission kind and carries the section for that kind:
//   - alignment: tunable parameters, tolerance and commit threshold
//   - diagnosis: anomalies, scan and message timings, the final question
//   - deployment: entity count and names, countdown, optional pinned objectives
//
// The names "alignment", "diagnosis" and "deployment" always resolve, to a
// file of that name when present and to the built-in config otherwise.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		return err
//	}
//
//	// Load specific configuration
//	missionConfig, err := manager.LoadConfig("deployment")
//
//	// Get default configuration
//	defaultConfig := manager.GetDefault()
//
//	// List available configurations
//	configs, err := manager.ListConfigs()
//
// Server Settings:
//
// LoadSettings reads a YAML file (path argument or MISSIONS_CONFIG), starting
// from DefaultSettings and applying MISSIONS_*, LOG_* and NGROK_* environment
// variables last.
package config
