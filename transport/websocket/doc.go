// Package websocket provides the socket transport for the gateway.
//
// The package implements:
//   - HTTP upgrade and per-connection read/write pumps
//   - Ping/pong keepalive with write deadlines
//   - A per-connection state machine (anonymous, identified, closed)
//   - Registry cleanup when a connection goes away
//
// Architecture:
//
// A Gateway owns the set of open clients through its Run loop, the same
// hub-and-spoke shape used for register and unregister events. Each Client
// has a read goroutine that routes frames in arrival order and a write
// goroutine that drains a bounded send buffer, one frame per envelope.
//
// Message Protocol:
//
//   - Incoming: {"mapper": "register", "body": {"username": "alice"}}
//   - Outgoing: {"status": "OK", "identifier": "alice", "message": "...", "body": {...}}
//
// Frames that are not JSON text get {"status":"ERROR","message":"server error."}
// and the connection stays open.
//
// Usage:
//
//	gw := websocket.NewGateway(r, advisor, connections, groups, logger, websocket.DefaultOptions())
//	go gw.Run(ctx)
//
//	http.Handle("/ws", gw)
//
// Connection Lifecycle:
//
// 1. Client connects and is tracked by the gateway
// 2. Frames are routed; a successful register makes it identified
// 3. unregister makes it anonymous again
// 4. Disconnection removes its identity binding and every group membership
package websocket
