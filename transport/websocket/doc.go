// Package websocket pushes mission snapshots and engine events to browser
// clients.
//
// Architecture:
//
// A central Hub owns every connection. One goroutine runs the hub loop and
// two more per client pump reads and writes. The Hub implements
// service.Notifier, so the game service publishes to it directly; publishing
// never blocks and drops messages when the hub falls behind.
//
// Message Protocol:
//
// Every outgoing frame is one JSON Message:
//
//	{"session_id":"a1b2","type":"snapshot","snapshot":{...}}
//	{"session_id":"a1b2","type":"event","event":{"type":"anomaly_found",...}}
//
// Clients connect with ?session=<id> and receive only that session's traffic.
// The latest snapshot of a session is replayed to each client as it joins.
//
// Usage:
//
//	hub := websocket.NewHub()
//	go hub.Run(ctx)
//	svc := service.NewGameService(sessions, configs, service.WithNotifier(hub))
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
