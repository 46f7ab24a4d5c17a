// Package handler implements the socket operations.
//
// The Controller binds register, unregister, join, leave, dispatch and
// screenshot into a router table:
//
//	ctrl := handler.NewController(connections, groups, dispatcher, renderer, logger)
//	r, err := ctrl.NewRouter()
//
// Handlers resolve their Result synchronously. Failures are tagged with a
// failure kind and rendered by the advisor; the message text reaches the
// client unchanged.
package handler
