package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ChannelType selects how a delivery target is resolved.
type ChannelType string

const (
	ChannelSingle ChannelType = "SINGLE"
	ChannelGroup  ChannelType = "GROUP"
)

// UnmarshalJSON accepts SINGLE or GROUP; an empty value means SINGLE.
func (c *ChannelType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("channelType: %w", err)
	}
	switch ChannelType(strings.ToUpper(s)) {
	case "", ChannelSingle:
		*c = ChannelSingle
	case ChannelGroup:
		*c = ChannelGroup
	default:
		return fmt.Errorf("channelType: unknown value %q", s)
	}
	return nil
}

// OrDefault returns SINGLE for the zero value.
func (c ChannelType) OrDefault() ChannelType {
	if c == "" {
		return ChannelSingle
	}
	return c
}

// RegisterRequest is the payload of the register operation.
type RegisterRequest struct {
	Username string `json:"username"`
	Agent    string `json:"agent"`
}

// Validate checks required fields.
func (r RegisterRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return errors.New("username is required")
	}
	return nil
}

// RegisterResponse is the body returned by register.
type RegisterResponse struct {
	Message string   `json:"message"`
	Online  []string `json:"online"`
}

// UnregisterRequest is the (empty) payload of unregister.
type UnregisterRequest struct{}

// GroupRequest is the payload of join and leave.
type GroupRequest struct {
	GroupName string `json:"groupName"`
}

// Validate checks required fields.
func (r GroupRequest) Validate() error {
	if strings.TrimSpace(r.GroupName) == "" {
		return errors.New("groupName is required")
	}
	return nil
}

// GroupResponse is the body returned by join and leave.
type GroupResponse struct {
	Message string `json:"message"`
}

// MessageRequest is the payload of dispatch. From and Date are filled in by
// the server before delivery.
type MessageRequest struct {
	ChannelType ChannelType `json:"channelType"`
	To          string      `json:"to"`
	From        string      `json:"from,omitempty"`
	Content     string      `json:"content,omitempty"`
	Date        int64       `json:"date,omitempty"`
}

// Validate checks required fields.
func (r MessageRequest) Validate() error {
	if strings.TrimSpace(r.To) == "" {
		return errors.New("to is required")
	}
	return nil
}

// ScreenshotRequest is the payload of screenshot.
type ScreenshotRequest struct {
	URL string `json:"url"`
}

// Validate requires an absolute http or https URL.
func (r ScreenshotRequest) Validate() error {
	if r.URL == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid url: %s", r.URL)
	}
	return nil
}

// SendMessageRequest is accepted by the administrative dispatch entry point.
type SendMessageRequest struct {
	ChannelType ChannelType `json:"channelType"`
	Destination string      `json:"destination"`
	Message     string      `json:"message"`
	Data        any         `json:"data,omitempty"`
}

// SendMessageResponse acknowledges an administrative dispatch. Delivered is
// the number of connections written to; it is not a delivery receipt.
type SendMessageResponse struct {
	Destination string    `json:"destination"`
	SentAt      time.Time `json:"sentAt"`
	Delivered   int       `json:"delivered"`
}
