// Command probe is a smoke-test client for a running gateway. It connects to
// the WebSocket endpoint, registers an identity, optionally joins a group and
// sends a message, then prints every frame it receives until the wait period
// ends.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/wsgateway/gateway/envelope"
	"github.com/wricardo/wsgateway/gateway/handler"
)

// Options controls one probe run.
type Options struct {
	URL     string
	User    string
	Agent   string
	Group   string
	To      string
	Channel envelope.ChannelType
	Message string
	Wait    time.Duration
}

func main() {
	cmd := &cli.Command{
		Name:  "probe",
		Usage: "exercise a running gateway over WebSocket",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "ws://localhost:8090/ws", Usage: "socket URL", Sources: cli.EnvVars("GATEWAY_SOCKET_URL")},
			&cli.StringFlag{Name: "user", Value: "probe", Usage: "identity to register"},
			&cli.StringFlag{Name: "agent", Value: "probe-cli", Usage: "agent string sent with register"},
			&cli.StringFlag{Name: "group", Usage: "group to join after registering"},
			&cli.StringFlag{Name: "to", Usage: "identity or group to dispatch to"},
			&cli.BoolFlag{Name: "to-group", Usage: "treat --to as a group name"},
			&cli.StringFlag{Name: "message", Value: "ping", Usage: "content to dispatch"},
			&cli.DurationFlag{Name: "wait", Value: 2 * time.Second, Usage: "how long to print incoming frames"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := Options{
				URL:     cmd.String("url"),
				User:    cmd.String("user"),
				Agent:   cmd.String("agent"),
				Group:   cmd.String("group"),
				To:      cmd.String("to"),
				Channel: envelope.ChannelSingle,
				Message: cmd.String("message"),
				Wait:    cmd.Duration("wait"),
			}
			if cmd.Bool("to-group") {
				opts.Channel = envelope.ChannelGroup
			}
			_, err := Run(ctx, opts, os.Stdout)
			return err
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

// Run performs the probe and returns every frame received, in order.
func Run(ctx context.Context, opts Options, out io.Writer) ([]envelope.Response, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	defer conn.Close()

	requests := []envelope.Request{
		request(handler.OpRegister, envelope.RegisterRequest{Username: opts.User, Agent: opts.Agent}),
	}
	if opts.Group != "" {
		requests = append(requests, request(handler.OpJoin, envelope.GroupRequest{GroupName: opts.Group}))
	}
	if opts.To != "" {
		requests = append(requests, request(handler.OpDispatch, envelope.MessageRequest{
			ChannelType: opts.Channel,
			To:          opts.To,
			Content:     opts.Message,
		}))
	}

	for _, req := range requests {
		data, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "> %s\n", data)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return nil, fmt.Errorf("write %s: %w", req.Mapper, err)
		}
	}

	var frames []envelope.Response
	conn.SetReadDeadline(time.Now().Add(opts.Wait))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return frames, nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return frames, nil
			}
			return frames, fmt.Errorf("read: %w", err)
		}
		fmt.Fprintf(out, "< %s\n", data)

		var resp envelope.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			return frames, fmt.Errorf("decode frame: %w", err)
		}
		frames = append(frames, resp)
	}
}

func request(op string, body any) envelope.Request {
	raw, _ := json.Marshal(body)
	return envelope.Request{Mapper: op, Body: raw}
}
