// Package dispatch delivers envelopes to SINGLE or GROUP destinations.
//
// Delivery is best-effort, at-most-once and fire-and-forget: an unknown
// identity is a silent no-op, and a failing recipient is logged without
// affecting the others. Nothing is queued or persisted.
package dispatch

import (
	"log/slog"
	"time"

	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/registry"
)

// Target names a delivery destination.
type Target struct {
	Type        envelope.ChannelType
	Destination string
}

// Single addresses one registered identity.
func Single(identity string) Target {
	return Target{Type: envelope.ChannelSingle, Destination: identity}
}

// Group addresses every member of a group.
func Group(name string) Target {
	return Target{Type: envelope.ChannelGroup, Destination: name}
}

// To addresses destination by channel type, SINGLE when unset.
func To(channel envelope.ChannelType, destination string) Target {
	if channel.OrDefault() == envelope.ChannelGroup {
		return Group(destination)
	}
	return Single(destination)
}

// Dispatcher resolves targets through the registries and writes to them.
type Dispatcher struct {
	connections *registry.ConnectionRegistry
	groups      *registry.GroupRegistry
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher over the shared registries.
func NewDispatcher(connections *registry.ConnectionRegistry, groups *registry.GroupRegistry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		connections: connections,
		groups:      groups,
		logger:      logger.With("component", "dispatcher"),
	}
}

// Dispatch writes resp to the target and returns how many connections
// accepted the write.
func (d *Dispatcher) Dispatch(target Target, resp *envelope.Response) int {
	switch target.Type.OrDefault() {
	case envelope.ChannelGroup:
		return d.group(target.Destination, resp)
	default:
		return d.single(target.Destination, resp)
	}
}

// Send is the administrative entry point: it wraps the message and data in
// an envelope addressed to the destination and dispatches it.
func (d *Dispatcher) Send(req envelope.SendMessageRequest) envelope.SendMessageResponse {
	resp := envelope.OK(req.Destination, req.Message, req.Data)
	delivered := d.Dispatch(To(req.ChannelType, req.Destination), resp)
	return envelope.SendMessageResponse{
		Destination: req.Destination,
		SentAt:      time.Now(),
		Delivered:   delivered,
	}
}

func (d *Dispatcher) single(identity string, resp *envelope.Response) int {
	conn, ok := d.connections.Get(identity)
	if !ok {
		d.logger.Debug("single destination not registered", "destination", identity)
		return 0
	}

	data, err := envelope.Encode(resp)
	if err != nil {
		d.logger.Error("failed to encode envelope", "destination", identity, "error", err)
		return 0
	}
	if err := conn.Send(data); err != nil {
		d.logger.Warn("failed to deliver", "destination", identity, "conn", conn.ID(), "error", err)
		return 0
	}
	return 1
}

func (d *Dispatcher) group(name string, resp *envelope.Response) int {
	members := d.groups.GetOrCreate(name).Members()
	if len(members) == 0 {
		return 0
	}

	data, err := envelope.Encode(resp)
	if err != nil {
		d.logger.Error("failed to encode envelope", "group", name, "error", err)
		return 0
	}

	delivered := 0
	for _, conn := range members {
		if err := conn.Send(data); err != nil {
			d.logger.Warn("failed to deliver to group member", "group", name, "conn", conn.ID(), "error", err)
			continue
		}
		delivered++
	}
	return delivered
}
