package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/wsgateway/api"
	"github.com/wricardo/wsgateway/gateway/envelope"
)

// Client is a thin MCP client that proxies to the admin REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the admin REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"WebSocket Gateway",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`WebSocket Gateway - MCP Interface

This is a thin client that proxies all requests to the gateway admin API.

Clients connect over WebSocket, claim an identity with "register" and may
join named groups. These tools let an operator push messages to them.

AVAILABLE TOOLS:
- send_message: Deliver a message to one identity (SINGLE) or every member of a group (GROUP)
- list_online: Registered identities in registration order
- list_groups: Known groups with member counts
- get_group: One group's member count
- gateway_health: Live connection, identity and group counters

Delivery is best effort. A SINGLE send to an identity that is not online
reports 0 deliveries and is not an error.`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "send_message",
		Description: "Send a message to a registered identity or a group",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"channel_type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(envelope.ChannelSingle), string(envelope.ChannelGroup)},
					"description": "SINGLE targets an identity, GROUP targets a group (default SINGLE)",
				},
				"destination": map[string]interface{}{
					"type":        "string",
					"description": "Identity or group name",
				},
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Message text",
				},
				"data": map[string]interface{}{
					"type":        "object",
					"description": "Optional JSON payload delivered as the envelope body",
				},
			},
			Required: []string{"destination"},
		},
	}, c.handleSendMessage)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_online",
		Description: "List registered identities",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListOnline)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_groups",
		Description: "List all groups with their member counts",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListGroups)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_group",
		Description: "Get details of a specific group",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Group name",
				},
			},
			Required: []string{"name"},
		},
	}, c.handleGetGroup)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "gateway_health",
		Description: "Get gateway liveness and counters",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleHealth)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// HTTPHandler serves JSON-RPC messages posted to it.
func (c *Client) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}

		response := c.mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(response)
	}
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleSendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	destination, err := request.RequireString("destination")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	body := envelope.SendMessageRequest{
		ChannelType: envelope.ChannelType(strings.ToUpper(request.GetString("channel_type", string(envelope.ChannelSingle)))),
		Destination: destination,
		Message:     request.GetString("message", ""),
	}
	if data, ok := request.GetArguments()["data"]; ok {
		body.Data = data
	}

	var ack envelope.SendMessageResponse
	if err := c.apiCall(ctx, "POST", "/api/dispatch", body, &ack); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatAck(body.ChannelType, ack)), nil
}

func (c *Client) handleListOnline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response api.OnlineResponse
	if err := c.apiCall(ctx, "GET", "/api/online", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Online (%d):\n", response.Count)
	for _, identity := range response.Online {
		result += fmt.Sprintf("- %s\n", identity)
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListGroups(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response api.GroupsResponse
	if err := c.apiCall(ctx, "GET", "/api/groups", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Groups (%d):\n", response.Count)
	for _, g := range response.Groups {
		result += formatGroup(g) + "\n"
	}
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleGetGroup(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var group api.GroupInfo
	if err := c.apiCall(ctx, "GET", "/api/groups/"+url.PathEscape(name), nil, &group); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatGroup(group)), nil
}

func (c *Client) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var health api.HealthResponse
	if err := c.apiCall(ctx, "GET", "/health", nil, &health); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Status: %s\nConnections: %d\nIdentities: %d\nGroups: %d\nUptime: %s\n",
		health.Status, health.Connections, health.Identities, health.Groups, health.Uptime)
	return mcp.NewToolResultText(result), nil
}

func formatAck(channel envelope.ChannelType, ack envelope.SendMessageResponse) string {
	if ack.Delivered == 0 {
		return fmt.Sprintf("No connection received the message (%s %s)", channel.OrDefault(), ack.Destination)
	}
	return fmt.Sprintf("Delivered to %d connection(s) (%s %s) at %s",
		ack.Delivered, channel.OrDefault(), ack.Destination, ack.SentAt.Format(time.RFC3339))
}

func formatGroup(g api.GroupInfo) string {
	return fmt.Sprintf("- %s (%d members)", g.Name, g.Members)
}
