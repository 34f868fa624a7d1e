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

// Package rpctest provides an in-process agent event channel for tests.
package rpctest

import (
	"crypto/subtle"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tombee/rdbg/internal/rpc"
)

// Server is a minimal agent channel endpoint. It acknowledges subscribe and
// unsubscribe requests and lets tests publish to subscribed connections.
type Server struct {
	*httptest.Server

	token    string
	upgrader websocket.Upgrader

	mu           sync.Mutex
	conns        map[*conn]struct{}
	rejects      map[string]*rpc.ErrorResponse
	unsubscribes map[string]int
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	topics map[string]bool
}

func (c *conn) send(msg *rpc.Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) subscribed(topic string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.topics[topic]
}

// NewServer starts a server. If token is non-empty, connections must send
// it in the X-Auth-Token header.
func NewServer(token string) *Server {
	s := &Server{
		token:        token,
		conns:        make(map[*conn]struct{}),
		rejects:      make(map[string]*rpc.ErrorResponse),
		unsubscribes: make(map[string]int),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	return s
}

// WebSocketURL returns the ws:// URL of the server.
func (s *Server) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// RejectSubscribe makes subscribe requests for topic fail with e.
func (s *Server) RejectSubscribe(topic string, e *rpc.ErrorResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects[topic] = e
}

// Subscribers returns how many connections are subscribed to topic.
func (s *Server) Subscribers(topic string) int {
	n := 0
	for _, c := range s.snapshot() {
		if c.subscribed(topic) {
			n++
		}
	}
	return n
}

// Unsubscribes returns how many unsubscribe requests arrived for topic.
func (s *Server) Unsubscribes(topic string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribes[topic]
}

// Publish sends body to every connection subscribed to topic.
func (s *Server) Publish(topic string, body interface{}) error {
	msg, err := rpc.NewPublish(topic, body)
	if err != nil {
		return err
	}
	for _, c := range s.snapshot() {
		if c.subscribed(topic) {
			if err := c.send(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// FailChannel sends an uncorrelated error for topic to its subscribers.
func (s *Server) FailChannel(topic, code string, status int, message string) error {
	msg := rpc.NewErrorMessage("", topic, code, status, message)
	for _, c := range s.snapshot() {
		if c.subscribed(topic) {
			if err := c.send(msg); err != nil {
				return err
			}
		}
	}
	return nil
}

// DropConnections closes every connection without a close handshake.
func (s *Server) DropConnections() {
	for _, c := range s.snapshot() {
		c.ws.Close()
	}
}

// Close drops connections and shuts the HTTP server down.
func (s *Server) Close() {
	s.DropConnections()
	s.Server.Close()
}

func (s *Server) snapshot() []*conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.token != "" {
		got := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws, topics: make(map[string]bool)}

	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()

	go s.serve(c)
}

func (s *Server) serve(c *conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.mu.Unlock()
		c.ws.Close()
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := rpc.ParseMessage(data)
		if err != nil {
			_ = c.send(rpc.NewErrorMessage("invalid", "invalid", rpc.CodeBadRequest, http.StatusBadRequest, err.Error()))
			continue
		}

		switch msg.Type {
		case rpc.MessageTypeSubscribe:
			s.mu.Lock()
			reject := s.rejects[msg.Channel]
			s.mu.Unlock()
			if reject != nil {
				_ = c.send(rpc.NewErrorMessage(msg.CorrelationID, msg.Channel, reject.Code, reject.Status, reject.Message))
				continue
			}
			c.mu.Lock()
			c.topics[msg.Channel] = true
			c.mu.Unlock()
			_ = c.send(rpc.NewAck(msg.CorrelationID, msg.Channel))
		case rpc.MessageTypeUnsubscribe:
			c.mu.Lock()
			delete(c.topics, msg.Channel)
			c.mu.Unlock()
			s.mu.Lock()
			s.unsubscribes[msg.Channel]++
			s.mu.Unlock()
			_ = c.send(rpc.NewAck(msg.CorrelationID, msg.Channel))
		}
	}
}

