// Package mcp provides a Model Context Protocol front end for the gateway's
// admin API.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions that proxy to the admin REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//   - send_message: Deliver a message to an identity or a group
//   - list_online: Registered identities
//   - list_groups: Known groups with member counts
//   - get_group: One group
//   - gateway_health: Liveness and counters
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8090")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	router.HandleFunc("/mcp", client.HTTPHandler())
package mcp
