// Package router maps inbound operation names to handlers and handler errors
// to client envelopes.
//
// # Routing
//
// The operation table is built once with NewRouter and never changes. Each
// route is bound with Handle, which decodes the frame body into the
// handler's payload type before calling it:
//
//	r, err := router.NewRouter([]router.Route{
//		router.Handle("register", ctrl.Register),
//		router.Handle("join", ctrl.Join),
//	}, "register", "join")
//
// Route returns a Result that the handler resolves exactly once. An unknown
// operation or a body that fails to decode resolves it with a validation
// failure without calling the handler.
//
// # Error rendering
//
// An Advisor maps failure kinds to renderers by exact tag. Kinds without a
// rule render as the generic server error envelope.
package router
