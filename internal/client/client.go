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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tombee/rdbg/internal/log"
	"github.com/tombee/rdbg/pkg/errors"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// userAgent identifies requests from this client to the agent.
const userAgent = "rdbg-client/1.0"

// Client is a client for the debug agent REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	logger     *slog.Logger
	middleware *log.CommandMiddleware
}

// New creates a client for the agent at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, &errors.ConfigError{Key: "agent.url", Reason: "agent URL is empty"}
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &errors.ConfigError{Key: "agent.url", Reason: fmt.Sprintf("invalid agent URL %q", baseURL), Cause: err}
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = log.WithComponent(c.logger, "agent-client")
	c.middleware = log.NewCommandMiddleware(c.logger)

	return c, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = client
		return nil
	}
}

// WithTransport sets a custom transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{Transport: transport}
		return nil
	}
}

// WithAPIKey sets the API key for authentication.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) error {
		c.apiKey = apiKey
		return nil
	}
}

// WithRateLimit caps outgoing commands at rps per second with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 {
			c.limiter = nil
			return nil
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithLogger sets the logger used for command logging.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// BaseURL returns the agent URL the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// call describes one agent command.
type call struct {
	command   string
	sessionID string
	method    string
	path      string
	query     url.Values
	body      any
	out       any
}

// do sends the request described by cl and decodes the response into
// cl.out. A *string out receives the raw body.
func (c *Client) do(ctx context.Context, cl call) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &errors.TransportError{Op: cl.command, Cause: err}
		}
	}

	info := &log.CommandCall{
		Command:       cl.command,
		CorrelationID: uuid.New().String(),
		SessionID:     cl.sessionID,
		Remote:        c.baseURL,
	}
	return c.middleware.Do(info, func() error {
		return c.roundTrip(ctx, info.CorrelationID, cl)
	})
}

func (c *Client) roundTrip(ctx context.Context, correlationID string, cl call) error {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var bodyReader io.Reader
	if cl.body != nil {
		data, err := json.Marshal(cl.body)
		if err != nil {
			return &errors.TransportError{Op: cl.command, Message: "failed to marshal request", Cause: err}
		}
		log.Trace(c.logger, "agent request body", slog.String(log.CommandKey, cl.command), slog.String("body", string(data)))
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, target, bodyReader)
	if err != nil {
		return &errors.TransportError{Op: cl.command, Message: "failed to create request", Cause: err}
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, text/plain")
	req.Header.Set("X-Correlation-ID", correlationID)
	req.Header.Set("User-Agent", userAgent)
	c.addAuth(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &errors.TransportError{Op: cl.command, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(cl, resp)
	}

	return decodeBody(cl, resp)
}

func decodeBody(cl call, resp *http.Response) error {
	switch out := cl.out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *string:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &errors.TransportError{Op: cl.command, Cause: err}
		}
		*out = string(data)
		return nil
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &errors.TransportError{Op: cl.command, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
		}
		return nil
	}
}

// agentError is the JSON error body the agent sends.
type agentError struct {
	Message string `json:"message"`
}

// statusError maps a failed response to the error taxonomy.
func (c *Client) statusError(cl call, resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	var ae agentError
	if json.Unmarshal(data, &ae) == nil && ae.Message != "" {
		msg = ae.Message
	}

	if cl.sessionID != "" && isSessionNotFound(resp.StatusCode, msg) {
		return &errors.SessionNotFoundError{SessionID: cl.sessionID, Message: msg}
	}
	return &errors.TransportError{Op: cl.command, StatusCode: resp.StatusCode, Message: msg}
}

func isSessionNotFound(status int, msg string) bool {
	switch status {
	case http.StatusNotFound:
		return true
	case http.StatusInternalServerError:
		return strings.Contains(strings.ToLower(msg), "not found")
	}
	return false
}

// addAuth adds authentication headers to the request if configured.
func (c *Client) addAuth(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
