package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/failure"
	"github.com/wricardo/wsgateway/gateway/registry"
)

// InvalidMapperMessage is the ValidationError text for an unknown or empty
// operation name.
const InvalidMapperMessage = "invalid request mapper name."

var tracer = otel.Tracer("wsgateway/router")

// ConnContext is what a handler knows about the connection that sent the
// frame.
type ConnContext struct {
	Ctx    context.Context
	Conn   registry.Connection
	Logger *slog.Logger
}

// Context returns Ctx, or a background context when unset.
func (cc *ConnContext) Context() context.Context {
	if cc.Ctx == nil {
		return context.Background()
	}
	return cc.Ctx
}

// HandlerFunc receives the raw payload. Handle builds one from a typed
// handler.
type HandlerFunc func(cc *ConnContext, body json.RawMessage, res *Result)

// Route binds an operation name to a handler.
type Route struct {
	Name    string
	Handler HandlerFunc
}

type validator interface {
	Validate() error
}

// Handle binds a handler whose payload decodes into T. If T has a
// Validate() error method it runs after decoding; either failure resolves
// the Result with a ValidationError and h is not called.
func Handle[T any](name string, h func(cc *ConnContext, payload T, res *Result)) Route {
	return Route{
		Name: name,
		Handler: func(cc *ConnContext, body json.RawMessage, res *Result) {
			var payload T
			if !envelope.IsEmpty(body) {
				if err := json.Unmarshal(body, &payload); err != nil {
					res.Fail(failure.Validation(fmt.Sprintf("invalid %s body: %v", name, err)))
					return
				}
			}
			if v, ok := any(payload).(validator); ok {
				if err := v.Validate(); err != nil {
					res.Fail(failure.Validation(err.Error()))
					return
				}
			}
			h(cc, payload, res)
		},
	}
}

// Router is a static table from operation name to handler.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter builds the table. It fails on an empty or duplicate name, a nil
// handler, or any expected operation that has no route.
func NewRouter(routes []Route, expected ...string) (*Router, error) {
	handlers := make(map[string]HandlerFunc, len(routes))
	for _, route := range routes {
		if route.Name == "" {
			return nil, fmt.Errorf("route with empty operation name")
		}
		if route.Handler == nil {
			return nil, fmt.Errorf("route %q has no handler", route.Name)
		}
		if _, exists := handlers[route.Name]; exists {
			return nil, fmt.Errorf("duplicate route %q", route.Name)
		}
		handlers[route.Name] = route.Handler
	}

	for _, name := range expected {
		if _, exists := handlers[name]; !exists {
			return nil, fmt.Errorf("missing route for operation %q", name)
		}
	}

	return &Router{handlers: handlers}, nil
}

// Operations returns the sorted operation names.
func (r *Router) Operations() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Route looks up the handler for req.Mapper and runs it. The returned Result
// may still be pending when Route returns if the handler completes it later.
func (r *Router) Route(cc *ConnContext, req envelope.Request) *Result {
	res := NewResult()

	ctx, span := tracer.Start(cc.Context(), "wsgateway.route", trace.WithAttributes(
		attribute.String("ws.operation", req.Mapper),
	))
	defer span.End()

	handler, ok := r.handlers[req.Mapper]
	if !ok {
		res.Fail(failure.Validation(InvalidMapperMessage))
		recordOutcome(span, res)
		return res
	}

	routed := *cc
	routed.Ctx = ctx
	invoke(handler, &routed, req, res)
	recordOutcome(span, res)
	return res
}

func invoke(handler HandlerFunc, cc *ConnContext, req envelope.Request, res *Result) {
	defer func() {
		if p := recover(); p != nil {
			if cc.Logger != nil {
				cc.Logger.Error("handler panicked", "operation", req.Mapper, "panic", p)
			}
			res.Fail(fmt.Errorf("handler %s panicked: %v", req.Mapper, p))
		}
	}()
	handler(cc, req.Body, res)
}

func recordOutcome(span trace.Span, res *Result) {
	if !res.Resolved() {
		span.SetAttributes(attribute.Bool("ws.pending", true))
		return
	}
	if _, err := res.Outcome(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	span.SetStatus(codes.Ok, "routed")
}
