// Package envelope defines the JSON frames exchanged over a gateway connection.
//
// Inbound frames name an operation and carry an opaque payload:
//
//	{"mapper": "join", "body": {"groupName": "room1"}}
//
// Outbound frames carry a status plus optional identifier, message and body:
//
//	{"status": "OK", "identifier": "room1", "message": "Done", "body": {"message": "join"}}
//
// The package also holds the payload types of every operation the gateway
// understands, so handlers, the admin API and test clients share one
// definition of the wire format.
package envelope
