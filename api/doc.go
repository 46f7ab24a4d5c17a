// Package api provides the admin HTTP API for the gateway.
//
// The api package implements:
//   - The administrative dispatch entry point
//   - Read-only views of online identities and groups
//   - A health endpoint
//   - The WebSocket upgrade mount
//
// Endpoints:
//
//   - GET /api - Endpoint index
//   - POST /api/dispatch - Deliver a message to a SINGLE identity or a GROUP
//   - GET /api/online - Registered identities in registration order
//   - GET /api/groups - Every known group with its member count
//   - GET /api/groups/{name} - One group
//   - GET /health - Liveness and counters
//   - GET /ws - WebSocket upgrade (path is configurable)
//
// Dispatch Request:
//
//	{
//	  "channelType": "SINGLE|GROUP",
//	  "destination": "alice",
//	  "message": "deploy finished",
//	  "data": {"build": 42}
//	}
//
// The destination receives {"status":"OK","identifier":destination,
// "message":message,"body":data}. The response is 202 with the number of
// connections written to; an unknown SINGLE destination is not an error.
//
// Usage:
//
//	server := api.NewServer(dispatcher, connections, groups, gw, "/ws", logger)
//	http.ListenAndServe(":8090", server)
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
