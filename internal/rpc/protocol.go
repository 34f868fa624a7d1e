// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidMessage is returned when a message cannot be parsed.
	ErrInvalidMessage = errors.New("rpc: invalid message format")

	// ErrMissingCorrelationID is returned when a request lacks a correlation ID.
	ErrMissingCorrelationID = errors.New("rpc: missing correlation ID")

	// ErrMissingChannel is returned when a channel message has no channel.
	ErrMissingChannel = errors.New("rpc: missing channel")
)

// MessageType identifies the type of bus message.
type MessageType string

const (
	// MessageTypeSubscribe asks the agent to start sending a channel.
	MessageTypeSubscribe MessageType = "subscribe"

	// MessageTypeUnsubscribe asks the agent to stop sending a channel.
	MessageTypeUnsubscribe MessageType = "unsubscribe"

	// MessageTypeAck confirms a subscribe or unsubscribe.
	MessageTypeAck MessageType = "ack"

	// MessageTypePublish carries a channel payload.
	MessageTypePublish MessageType = "publish"

	// MessageTypeError reports a failed request or a channel failure.
	MessageTypeError MessageType = "error"
)

// Error codes used by the agent.
const (
	CodeNotFound   = "not_found"
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

// Message is the envelope for everything on the bus.
type Message struct {
	// Type identifies the message type
	Type MessageType `json:"type"`

	// CorrelationID links a request with its ack or error
	CorrelationID string `json:"correlationId,omitempty"`

	// Channel is the topic the message concerns
	Channel string `json:"channel,omitempty"`

	// Body is the published payload (publish only)
	Body json.RawMessage `json:"body,omitempty"`

	// Error contains error information (error only)
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse contains structured error information.
type ErrorResponse struct {
	// Code is a machine-readable error code
	Code string `json:"code"`

	// Status is the HTTP-equivalent status of the failure, if any
	Status int `json:"status,omitempty"`

	// Message is a human-readable error message
	Message string `json:"message"`
}

// IsNotFound reports whether the error means the channel's session is gone.
// Older agents only send a 500 with "not found" in the message.
func (e *ErrorResponse) IsNotFound() bool {
	if e == nil {
		return false
	}
	if e.Code == CodeNotFound {
		return true
	}
	return e.Status == http.StatusInternalServerError && strings.Contains(strings.ToLower(e.Message), "not found")
}

// NewSubscribe creates a subscribe request with a generated correlation ID.
func NewSubscribe(channel string) *Message {
	return &Message{
		Type:          MessageTypeSubscribe,
		CorrelationID: uuid.New().String(),
		Channel:       channel,
	}
}

// NewUnsubscribe creates an unsubscribe request with a generated correlation ID.
func NewUnsubscribe(channel string) *Message {
	return &Message{
		Type:          MessageTypeUnsubscribe,
		CorrelationID: uuid.New().String(),
		Channel:       channel,
	}
}

// NewAck acknowledges the request identified by correlationID.
func NewAck(correlationID, channel string) *Message {
	return &Message{
		Type:          MessageTypeAck,
		CorrelationID: correlationID,
		Channel:       channel,
	}
}

// NewPublish creates a publish message carrying body.
func NewPublish(channel string, body interface{}) (*Message, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal body: %w", err)
	}
	return &Message{
		Type:    MessageTypePublish,
		Channel: channel,
		Body:    data,
	}, nil
}

// NewErrorMessage creates an error message. correlationID is empty for
// channel failures that are not a reply to a request.
func NewErrorMessage(correlationID, channel, code string, status int, message string) *Message {
	return &Message{
		Type:          MessageTypeError,
		CorrelationID: correlationID,
		Channel:       channel,
		Error: &ErrorResponse{
			Code:    code,
			Status:  status,
			Message: message,
		},
	}
}

// Validate checks if the message is well-formed.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeSubscribe, MessageTypeUnsubscribe:
		if m.CorrelationID == "" {
			return ErrMissingCorrelationID
		}
		if m.Channel == "" {
			return ErrMissingChannel
		}
	case MessageTypeAck:
		if m.CorrelationID == "" {
			return ErrMissingCorrelationID
		}
	case MessageTypePublish:
		if m.Channel == "" {
			return ErrMissingChannel
		}
	case MessageTypeError:
		if m.Error == nil {
			return fmt.Errorf("%w: missing error", ErrInvalidMessage)
		}
		if m.CorrelationID == "" && m.Channel == "" {
			return fmt.Errorf("%w: error without correlation ID or channel", ErrInvalidMessage)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidMessage, m.Type)
	}
	return nil
}

// Marshal encodes the message to JSON.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses and validates a JSON message.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return &msg, nil
}
