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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/internal/log"
	rdbgerrors "github.com/tombee/rdbg/pkg/errors"
)

var (
	// ErrBusClosed is returned when operations are attempted on a closed bus.
	ErrBusClosed = errors.New("rpc: bus closed")
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	queueSize    = 64
)

// BusConfig configures a Bus connection.
type BusConfig struct {
	// URL is the agent's WebSocket endpoint (ws:// or wss://).
	URL string

	// AuthToken is sent in the X-Auth-Token header when set.
	AuthToken string

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Bus is a client for the agent's publish/subscribe channel. It implements
// debugger.EventChannel. Messages for one subscription are delivered in
// order on a dedicated goroutine, so a slow handler never blocks the
// connection or other subscriptions.
type Bus struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	subs    map[string][]*subscription
	pending map[string]chan *Message
	closed  bool
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

var _ debugger.EventChannel = (*Bus)(nil)

// subscription is one handler's registration on a channel.
type subscription struct {
	topic   string
	handler debugger.MessageHandler
	queue   chan func()
	stop    chan struct{}
	once    sync.Once
}

func (s *subscription) Topic() string { return s.topic }

func newSubscription(topic string, h debugger.MessageHandler) *subscription {
	return &subscription{
		topic:   topic,
		handler: h,
		queue:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
	}
}

func (s *subscription) run() {
	for {
		select {
		case fn := <-s.queue:
			select {
			case <-s.stop:
				return
			default:
			}
			fn()
		case <-s.stop:
			return
		}
	}
}

func (s *subscription) enqueue(fn func()) {
	select {
	case s.queue <- fn:
	case <-s.stop:
	}
}

func (s *subscription) close() {
	s.once.Do(func() { close(s.stop) })
}

// Dial connects to the agent's channel endpoint.
func Dial(ctx context.Context, cfg BusConfig) (*Bus, error) {
	if cfg.URL == "" {
		return nil, &rdbgerrors.ConfigError{Key: "agent.events_url", Reason: "event channel URL is empty"}
	}
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	if cfg.AuthToken != "" {
		header.Set("X-Auth-Token", cfg.AuthToken)
	}

	conn, resp, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		te := &rdbgerrors.TransportError{Op: "event_channel_dial", Cause: err}
		if resp != nil {
			te.StatusCode = resp.StatusCode
			resp.Body.Close()
		}
		return nil, te
	}

	b := &Bus{
		conn:    conn,
		logger:  log.WithComponent(logger, "event-channel"),
		subs:    make(map[string][]*subscription),
		pending: make(map[string]chan *Message),
		done:    make(chan struct{}),
	}
	go b.readLoop()
	go b.pingLoop()

	b.logger.Debug("event channel connected", "url", cfg.URL)
	return b, nil
}

// Subscribe registers h for topic and waits for the agent's ack.
func (b *Bus) Subscribe(ctx context.Context, topic string, h debugger.MessageHandler) (debugger.Subscription, error) {
	sub := newSubscription(topic, h)
	msg := NewSubscribe(topic)
	reply := make(chan *Message, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBusClosed
	}
	// Registered before the request goes out so nothing published right
	// after the ack is missed.
	b.subs[topic] = append(b.subs[topic], sub)
	b.pending[msg.CorrelationID] = reply
	b.mu.Unlock()
	go sub.run()

	fail := func(err error) (debugger.Subscription, error) {
		b.mu.Lock()
		delete(b.pending, msg.CorrelationID)
		b.mu.Unlock()
		b.removeSubscription(topic, h)
		return nil, err
	}

	if err := b.write(msg); err != nil {
		return fail(&rdbgerrors.TransportError{Op: "subscribe", Message: topic, Cause: err})
	}

	select {
	case resp := <-reply:
		if resp.Type == MessageTypeError {
			return fail(channelError(topic, resp.Error))
		}
		b.logger.Debug("subscribed", log.TopicKey, topic)
		return sub, nil
	case <-b.done:
		return fail(b.closeErr())
	case <-ctx.Done():
		return fail(ctx.Err())
	}
}

// Unsubscribe removes h from topic. The agent is told to stop sending the
// channel once its last handler is gone; that request is not awaited.
func (b *Bus) Unsubscribe(_ context.Context, topic string, h debugger.MessageHandler) error {
	last, found := b.removeSubscription(topic, h)
	if !found || !last {
		return nil
	}

	if err := b.write(NewUnsubscribe(topic)); err != nil && !errors.Is(err, ErrBusClosed) {
		b.logger.Warn("unsubscribe request failed", log.TopicKey, topic, log.Error(err))
	}
	b.logger.Debug("unsubscribed", log.TopicKey, topic)
	return nil
}

// removeSubscription stops and removes h's subscription. It reports whether
// the topic has no handlers left and whether h was found.
func (b *Bus) removeSubscription(topic string, h debugger.MessageHandler) (bool, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, s := range subs {
		if s.handler == h {
			s.close()
			subs = append(subs[:i:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(b.subs, topic)
			} else {
				b.subs[topic] = subs
			}
			return len(subs) == 0, true
		}
	}
	return false, false
}

// IsSubscribed reports whether h is subscribed to topic.
func (b *Bus) IsSubscribed(h debugger.MessageHandler, topic string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs[topic] {
		if s.handler == h {
			return true
		}
	}
	return false
}

// Close shuts the connection down. Live handlers are not notified.
func (b *Bus) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.err = ErrBusClosed
		for topic, subs := range b.subs {
			for _, s := range subs {
				s.close()
			}
			delete(b.subs, topic)
		}
		b.mu.Unlock()

		b.writeMu.Lock()
		_ = b.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		b.writeMu.Unlock()

		err = b.conn.Close()
		close(b.done)
	})
	return err
}

func (b *Bus) write(msg *Message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
	log.Trace(b.logger, "channel frame out", slog.String("frame", string(data)))
	return b.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) readLoop() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.fail(err)
			return
		}
		log.Trace(b.logger, "channel frame in", slog.String("frame", string(data)))

		msg, err := ParseMessage(data)
		if err != nil {
			b.logger.Warn("dropping malformed channel message", log.Error(err))
			continue
		}
		b.dispatch(msg)
	}
}

func (b *Bus) dispatch(msg *Message) {
	if msg.CorrelationID != "" && (msg.Type == MessageTypeAck || msg.Type == MessageTypeError) {
		b.mu.Lock()
		reply, ok := b.pending[msg.CorrelationID]
		delete(b.pending, msg.CorrelationID)
		b.mu.Unlock()
		if ok {
			reply <- msg
			return
		}
		if msg.Type == MessageTypeAck {
			return
		}
	}

	subs := b.snapshot(msg.Channel)
	switch msg.Type {
	case MessageTypePublish:
		body := msg.Body
		for _, s := range subs {
			h := s.handler
			s.enqueue(func() { h.HandleMessage(body) })
		}
	case MessageTypeError:
		err := channelError(msg.Channel, msg.Error)
		for _, s := range subs {
			h := s.handler
			s.enqueue(func() { h.HandleError(err) })
		}
	}
}

func (b *Bus) snapshot(topic string) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*subscription(nil), b.subs[topic]...)
}

// fail reports a lost connection to every live handler and fails pending
// requests.
func (b *Bus) fail(cause error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.err = &rdbgerrors.TransportError{Op: "event_channel", Cause: cause}
	err := b.err
	var all []*subscription
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.mu.Unlock()

	if websocket.IsUnexpectedCloseError(cause, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		b.logger.Warn("event channel lost", log.Error(cause))
	}
	for _, s := range all {
		h := s.handler
		s.enqueue(func() { h.HandleError(err) })
	}
	b.closeOnce.Do(func() {
		b.conn.Close()
		close(b.done)
	})
}

func (b *Bus) closeErr() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	return ErrBusClosed
}

func (b *Bus) pingLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.writeMu.Lock()
			err := b.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			b.writeMu.Unlock()
			if err != nil {
				b.logger.Debug("ping failed", log.Error(err))
				return
			}
		}
	}
}

// channelError maps an agent error on topic to the error taxonomy.
func channelError(topic string, e *ErrorResponse) error {
	if e == nil {
		return &rdbgerrors.TransportError{Op: "event_channel", Message: topic}
	}
	if e.IsNotFound() {
		return &rdbgerrors.SessionNotFoundError{SessionID: sessionIDFromTopic(topic), Message: e.Message}
	}
	return &rdbgerrors.TransportError{
		Op:         "event_channel",
		StatusCode: e.Status,
		Message:    fmt.Sprintf("%s: %s", topic, e.Message),
	}
}

// sessionIDFromTopic returns the part of topic after its last ':'.
func sessionIDFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, ':'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

