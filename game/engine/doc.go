// Package engine provides the mission rules for the satellite missions game.
//
// The engine package implements three missions on one parameterised engine:
//   - alignment: tune parameters toward targets until the link quality
//     reaches the commit threshold, then send the message
//   - diagnosis: scan the satellite, claim every anomaly, then answer a
//     multiple-choice question until it is answered correctly
//   - deployment: configure each entity to its exact objective before the
//     mission clock runs out
//
// Core Types:
//
// The Engine interface defines the main contract for mission operations,
// implemented by MissionEngine. MissionState is the tagged mission state,
// MissionConfig defines the mission rules loaded from JSON files. Scorer,
// DiscoveryTracker, ConfigMatcher and MissionClock are the building blocks
// the engine composes.
//
// Usage:
//
//	config, err := engine.LoadConfigByName("deployment")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	missionEngine, err := engine.NewEngine(config)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := missionEngine.SelectEntity(0)
//	snap := missionEngine.Snapshot()
//
// Time:
//
// The engine never reads the wall clock for gameplay. Delayed transitions
// (scan completion, message dismissal, answer retry) and the deployment
// countdown advance only through Tick, so a host drives time explicitly and
// tests are deterministic.
package engine
