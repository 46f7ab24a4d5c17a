package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Status is the outcome carried by every outbound frame.
type Status string

const (
	StatusOK         Status = "OK"
	StatusError      Status = "ERROR"
	StatusBadRequest Status = "BAD_REQUEST"
)

// ServerErrorMessage is the text of the generic error envelope.
const ServerErrorMessage = "server error."

// Request is an inbound frame.
type Request struct {
	Mapper string          `json:"mapper"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// Response is an outbound frame.
type Response struct {
	Status     Status `json:"status"`
	Identifier string `json:"identifier,omitempty"`
	Message    string `json:"message,omitempty"`
	Body       any    `json:"body,omitempty"`
}

// OK builds a successful response.
func OK(identifier, message string, body any) *Response {
	return &Response{
		Status:     StatusOK,
		Identifier: identifier,
		Message:    message,
		Body:       body,
	}
}

// Error builds an ERROR response carrying message verbatim.
func Error(message string) *Response {
	return &Response{Status: StatusError, Message: message}
}

// BadRequest builds a BAD_REQUEST response carrying message verbatim.
func BadRequest(message string) *Response {
	return &Response{Status: StatusBadRequest, Message: message}
}

// ServerError is the generic fallback envelope.
func ServerError() *Response {
	return Error(ServerErrorMessage)
}

// DecodeRequest parses a text frame into a Request.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// Encode serializes a response for the wire. An empty status is sent as OK;
// resp itself is left untouched.
func Encode(resp *Response) ([]byte, error) {
	out := *resp
	if out.Status == "" {
		out.Status = StatusOK
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return data, nil
}

// IsEmpty reports whether a raw payload is absent or JSON null.
func IsEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
