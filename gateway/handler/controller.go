package handler

import (
	"context"
	"encoding/base64"
	"log/slog"
	"time"

	"github.com/wricardo/wsgateway/gateway/dispatch"
	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/failure"
	"github.com/wricardo/wsgateway/gateway/registry"
	"github.com/wricardo/wsgateway/gateway/router"
)

// Operation names accepted on the socket.
const (
	OpRegister   = "register"
	OpUnregister = "unregister"
	OpJoin       = "join"
	OpLeave      = "leave"
	OpDispatch   = "dispatch"
	OpScreenshot = "screenshot"
)

// Operations lists every operation the router must bind.
var Operations = []string{OpRegister, OpUnregister, OpJoin, OpLeave, OpDispatch, OpScreenshot}

// Error texts sent to clients.
const (
	MsgUnregisterFailure = "user unregister failure."
	MsgFromNotFound      = "from user not found."
	MsgToNotFound        = "to user not found."
	MsgJoinFailure       = "join to group failure."
	MsgLeaveFailure      = "leave group failure."
	MsgScreenshotFailure = "screenshot failure."
	MsgScreenshotOff     = "screenshot is not enabled."
)

// Screenshotter captures a rendered page.
type Screenshotter interface {
	Screenshot(ctx context.Context, url string) ([]byte, error)
}

// Controller holds the operation handlers and the shared state they use.
type Controller struct {
	connections *registry.ConnectionRegistry
	groups      *registry.GroupRegistry
	dispatcher  *dispatch.Dispatcher
	screenshots Screenshotter
	logger      *slog.Logger
	now         func() time.Time
}

// NewController creates a Controller. screenshots may be nil, in which case
// the screenshot operation always fails.
func NewController(
	connections *registry.ConnectionRegistry,
	groups *registry.GroupRegistry,
	dispatcher *dispatch.Dispatcher,
	screenshots Screenshotter,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		connections: connections,
		groups:      groups,
		dispatcher:  dispatcher,
		screenshots: screenshots,
		logger:      logger.With("component", "controller"),
		now:         time.Now,
	}
}

// Routes returns the router table for every operation.
func (c *Controller) Routes() []router.Route {
	return []router.Route{
		router.Handle(OpRegister, c.Register),
		router.Handle(OpUnregister, c.Unregister),
		router.Handle(OpJoin, c.Join),
		router.Handle(OpLeave, c.Leave),
		router.Handle(OpDispatch, c.Dispatch),
		router.Handle(OpScreenshot, c.Screenshot),
	}
}

// NewRouter builds a router bound to every operation.
func (c *Controller) NewRouter() (*router.Router, error) {
	return router.NewRouter(c.Routes(), Operations...)
}

// Register binds the username to the calling connection.
func (c *Controller) Register(cc *router.ConnContext, req envelope.RegisterRequest, res *router.Result) {
	c.logger.Info("register", "username", req.Username, "conn", cc.Conn.ID())

	c.connections.Add(req.Username, cc.Conn)

	body := envelope.RegisterResponse{
		Message: OpRegister,
		Online:  c.connections.ListIdentities(),
	}
	res.Complete(envelope.OK(req.Username, "agent: "+req.Agent, body))
}

// Unregister drops the identity bound to the calling connection.
func (c *Controller) Unregister(cc *router.ConnContext, _ envelope.UnregisterRequest, res *router.Result) {
	identity, _ := c.connections.IdentityOf(cc.Conn)
	if _, ok := c.connections.RemoveConnection(cc.Conn); !ok {
		res.Fail(failure.Registration(MsgUnregisterFailure))
		return
	}
	c.logger.Info("unregister", "identity", identity, "conn", cc.Conn.ID())
	res.Complete(envelope.OK("", "", struct{}{}))
}

// Join adds the calling connection to a group.
func (c *Controller) Join(cc *router.ConnContext, req envelope.GroupRequest, res *router.Result) {
	c.logger.Info("join", "group", req.GroupName, "conn", cc.Conn.ID())

	if !c.groups.AddMember(req.GroupName, cc.Conn) {
		res.Fail(failure.Group(MsgJoinFailure))
		return
	}
	res.Complete(envelope.OK(req.GroupName, "Done", envelope.GroupResponse{Message: OpJoin}))
}

// Leave removes the calling connection from a group.
func (c *Controller) Leave(cc *router.ConnContext, req envelope.GroupRequest, res *router.Result) {
	c.logger.Info("leave", "group", req.GroupName, "conn", cc.Conn.ID())

	if !c.groups.RemoveMember(req.GroupName, cc.Conn) {
		res.Fail(failure.Group(MsgLeaveFailure))
		return
	}
	res.Complete(envelope.OK(req.GroupName, "Done", envelope.GroupResponse{Message: OpLeave}))
}

// Dispatch delivers a message from the calling connection's identity. It
// produces no frame for the sender on success.
func (c *Controller) Dispatch(cc *router.ConnContext, req envelope.MessageRequest, res *router.Result) {
	from, ok := c.connections.IdentityOf(cc.Conn)
	if !ok {
		res.Fail(failure.Registration(MsgFromNotFound))
		return
	}

	req.ChannelType = req.ChannelType.OrDefault()
	if req.ChannelType == envelope.ChannelSingle {
		if _, ok := c.connections.Get(req.To); !ok {
			res.Fail(failure.Registration(MsgToNotFound))
			return
		}
	}

	req.From = from
	if req.Date == 0 {
		req.Date = c.now().UnixMilli()
	}

	delivered := c.dispatcher.Dispatch(
		dispatch.To(req.ChannelType, req.To),
		envelope.OK(req.To, req.Content, req),
	)
	c.logger.Debug("dispatch", "from", from, "to", req.To, "type", req.ChannelType, "delivered", delivered)
	res.Complete(nil)
}

// Screenshot renders the page at req.URL and returns it base64 encoded.
func (c *Controller) Screenshot(cc *router.ConnContext, req envelope.ScreenshotRequest, res *router.Result) {
	if c.screenshots == nil {
		res.Fail(failure.ExternalTool(MsgScreenshotOff, nil))
		return
	}

	c.logger.Info("screenshot", "url", req.URL, "conn", cc.Conn.ID())
	data, err := c.screenshots.Screenshot(cc.Context(), req.URL)
	if err != nil {
		c.logger.Error("screenshot failed", "url", req.URL, "error", err)
		res.Fail(failure.ExternalTool(MsgScreenshotFailure, err))
		return
	}
	res.Complete(envelope.OK("", "", base64.StdEncoding.EncodeToString(data)))
}
