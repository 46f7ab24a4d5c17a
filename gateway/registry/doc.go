// Package registry tracks live gateway connections, the identities they
// claim, and the named groups they belong to.
//
// The package implements:
//   - ConnectionRegistry: identity to connection, and back
//   - GroupRegistry: group name to member set, created lazily
//   - Group: a named member set with snapshot reads
//
// Core Types:
//
// Connection is the opaque handle the registries store. The WebSocket
// transport provides the real implementation; anything with an ID and a Send
// method can be registered.
//
// Addressing:
//
// ConnectionRegistry is the single source of truth for SINGLE destinations
// and GroupRegistry for GROUP destinations. The two stores are independent:
// "register then join" is two separate operations and never one transaction.
//
// Concurrency:
//
// Both registries are safe for unsynchronized concurrent use and are the
// synchronization boundary for the whole gateway. Each call is atomic on its
// own; nothing spans calls.
//
// Usage:
//
//	connections := registry.NewConnectionRegistry()
//	groups := registry.NewGroupRegistry()
//
//	connections.Add("alice", conn)
//	groups.AddMember("room1", conn)
//
//	// On close
//	connections.RemoveConnection(conn)
//	groups.RemoveFromAllGroups(conn)
//
// Lifecycle:
//
// Groups are never deleted, even when their last member leaves.
package registry
