package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/failure"
	"github.com/wricardo/wsgateway/gateway/router"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// State is the lifecycle position of a connection.
type State int32

const (
	StateAnonymous State = iota
	StateIdentified
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "CONNECTED_ANONYMOUS"
	case StateIdentified:
		return "CONNECTED_IDENTIFIED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Client is one socket connection. It implements registry.Connection.
type Client struct {
	id      string
	gateway *Gateway
	conn    *websocket.Conn
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32

	mu     sync.RWMutex
	closed bool
	send   chan []byte
}

func newClient(g *Gateway, conn *websocket.Conn, id string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:      id,
		gateway: g,
		conn:    conn,
		logger:  g.logger.With("conn", id),
		ctx:     ctx,
		cancel:  cancel,
		send:    make(chan []byte, g.opts.SendBuffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Send queues a frame for the write pump. It never blocks.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return failure.Transport("send failed", ErrConnectionClosed)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return failure.Transport("send failed", ErrSendBufferFull)
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.state.Store(int32(StateClosed))
	close(c.send)
	c.cancel()
}

// readPump routes inbound frames in arrival order until the peer goes away.
func (c *Client) readPump() {
	defer func() {
		c.gateway.leave(c)
		c.conn.Close()
	}()

	opts := c.gateway.opts
	c.conn.SetReadLimit(opts.MaxContentLength)
	c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(opts.PongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		c.handleFrame(messageType, data)
	}
}

// writePump drains the send buffer, one frame per envelope, and keeps the
// peer alive with pings.
func (c *Client) writePump() {
	opts := c.gateway.opts
	ticker := time.NewTicker(opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.cancel()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if !ok {
				// The gateway closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleFrame(messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		c.logger.Warn("unsupported frame type", "type", messageType)
		c.reply(envelope.ServerError())
		return
	}

	req, err := envelope.DecodeRequest(data)
	if err != nil {
		c.logger.Warn("malformed frame", "error", err)
		c.reply(envelope.ServerError())
		return
	}

	res := c.gateway.router.Route(&router.ConnContext{
		Ctx:    c.ctx,
		Conn:   c,
		Logger: c.logger,
	}, req)

	if res.Resolved() {
		c.finish(res)
		return
	}

	// Deferred results must not hold up later frames or close cleanup.
	go func() {
		select {
		case <-res.Done():
			c.finish(res)
		case <-c.ctx.Done():
			c.logger.Debug("connection closed before result", "operation", req.Mapper)
		}
	}()
}

// finish renders a resolved result and writes it back.
func (c *Client) finish(res *router.Result) {
	resp, err := res.Outcome()
	if err != nil {
		resp = c.gateway.advisor.Resolve(err)
	}
	c.refreshState()

	if resp == nil {
		return
	}
	c.reply(resp)
}

// refreshState derives Identified from the registry so unregister moves the
// connection back to Anonymous.
func (c *Client) refreshState() {
	next := StateAnonymous
	if _, ok := c.gateway.connections.IdentityOf(c); ok {
		next = StateIdentified
	}
	for {
		current := c.state.Load()
		if State(current) == StateClosed || c.state.CompareAndSwap(current, int32(next)) {
			return
		}
	}
}

// reply writes resp to this connection. Failures are logged and dropped.
func (c *Client) reply(resp *envelope.Response) {
	data, err := envelope.Encode(resp)
	if err != nil {
		c.logger.Error("failed to encode response", "error", err)
		return
	}
	if err := c.Send(data); err != nil {
		c.logger.Warn("failed to queue response", "error", err)
	}
}
