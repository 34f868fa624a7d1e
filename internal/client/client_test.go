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
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/rdbg/internal/debugger"
	"github.com/tombee/rdbg/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c, err := New(server.URL+"/api/debugger", append([]Option{WithHTTPClient(server.Client())}, opts...)...)
	require.NoError(t, err)
	return c
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New("")
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "agent.url", cfgErr.Key)

	_, err = New("not a url")
	require.ErrorAs(t, err, &cfgErr)
}

func TestClientConnect(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/debugger/connect", r.URL.Path)
		assert.Equal(t, "10.0.0.5", r.URL.Query().Get("host"))
		assert.Equal(t, "5005", r.URL.Query().Get("port"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Correlation-ID"))

		var bps []debugger.WireBreakpoint
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&bps))
		assert.Len(t, bps, 1)
		assert.Equal(t, 11, bps[0].Location.LineNumber)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "s-1", "host": "10.0.0.5", "port": 5005,
			"vmName": "OpenJDK 64-Bit Server VM", "vmVersion": "17.0.2",
		})
	}, WithAPIKey("secret"))

	h, err := c.Connect(context.Background(), debugger.ConnectRequest{
		Host: "10.0.0.5",
		Port: 5005,
		Breakpoints: []debugger.WireBreakpoint{
			{Location: debugger.Location{ClassName: "com.acme.App", LineNumber: 11}, Enabled: true},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "s-1", h.ID)
	assert.Equal(t, "OpenJDK 64-Bit Server VM 17.0.2", h.VMInfo())
}

func TestClientConnectSendsEmptyBreakpointList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `[]`, string(body))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "s-1"})
	})

	_, err := c.Connect(context.Background(), debugger.ConnectRequest{Host: "h", Port: 1})
	require.NoError(t, err)
}

func TestClientConnectWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"host":"h"}`))
	})

	_, err := c.Connect(context.Background(), debugger.ConnectRequest{Host: "h", Port: 1})
	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "connect", te.Op)
}

func TestClientCommandPaths(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		run    func(c *Client) error
	}{
		{"disconnect", http.MethodGet, "/api/debugger/disconnect/s-1", func(c *Client) error { return c.Disconnect(context.Background(), "s-1") }},
		{"step into", http.MethodGet, "/api/debugger/step/into/s-1", func(c *Client) error { return c.StepInto(context.Background(), "s-1") }},
		{"step over", http.MethodGet, "/api/debugger/step/over/s-1", func(c *Client) error { return c.StepOver(context.Background(), "s-1") }},
		{"step out", http.MethodGet, "/api/debugger/step/out/s-1", func(c *Client) error { return c.StepOut(context.Background(), "s-1") }},
		{"resume", http.MethodGet, "/api/debugger/resume/s-1", func(c *Client) error { return c.Resume(context.Background(), "s-1") }},
		{"delete all", http.MethodGet, "/api/debugger/breakpoints/delete_all/s-1", func(c *Client) error { return c.DeleteAllBreakpoints(context.Background(), "s-1") }},
		{"add breakpoint", http.MethodPost, "/api/debugger/breakpoints/add/s-1", func(c *Client) error {
			return c.AddBreakpoint(context.Background(), "s-1", debugger.WireBreakpoint{Enabled: true})
		}},
		{"delete breakpoint", http.MethodPost, "/api/debugger/breakpoints/delete/s-1", func(c *Client) error {
			return c.DeleteBreakpoint(context.Background(), "s-1", debugger.WireBreakpoint{})
		}},
		{"set value", http.MethodPost, "/api/debugger/value/set/s-1", func(c *Client) error {
			return c.SetValue(context.Background(), "s-1", debugger.UpdateVariableRequest{Expression: "42"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen := make(chan string, 1)
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				seen <- r.Method + " " + r.URL.Path
				w.WriteHeader(http.StatusOK)
			})

			require.NoError(t, tt.run(c))
			assert.Equal(t, tt.method+" "+tt.path, <-seen)
		})
	}
}

func TestClientCheckEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debugger/events/s-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"events":[
			{"type":2,"location":{"className":"com.acme.App","lineNumber":7}},
			{"type":1,"breakPoint":{"location":{"className":"com.acme.App","lineNumber":9},"enabled":true}},
			{"type":9}
		]}`))
	})

	events, err := c.CheckEvents(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, events.Events, 3)

	step, ok := events.Events[0].(debugger.StepEvent)
	require.True(t, ok)
	assert.Equal(t, 7, step.Location.LineNumber)

	hit, ok := events.Events[1].(debugger.BreakpointHitEvent)
	require.True(t, ok)
	assert.Equal(t, 9, hit.Breakpoint.Location.LineNumber)

	assert.Equal(t, debugger.EventType(9), events.Events[2].Type())
}

func TestClientEvaluateExpression(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debugger/expression/s-1", r.URL.Path)
		assert.Equal(t, "a + b", r.URL.Query().Get("expression"))
		_, _ = w.Write([]byte("3"))
	})

	got, err := c.EvaluateExpression(context.Background(), "s-1", "a + b")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestClientStackFrameDump(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/debugger/dump/s-1", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"fields":[{"name":"count","value":"3","type":"int","primitive":true}],
			"localVariables":[{"name":"args","value":"String[0]","type":"java.lang.String[]"}]
		}`))
	})

	frame, err := c.StackFrameDump(context.Background(), "s-1")
	require.NoError(t, err)
	require.Len(t, frame.Fields, 1)
	assert.Equal(t, "count", frame.Fields[0].Name)
	require.Len(t, frame.Locals, 1)
	assert.Equal(t, "args", frame.Locals[0].Name)
}

func TestClientGetValue(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var v debugger.Variable
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&v))
		assert.Equal(t, "list", v.Name)
		_, _ = w.Write([]byte(`{"value":"[1]","variables":[{"name":"0","value":"1"}]}`))
	})

	val, err := c.GetValue(context.Background(), "s-1", debugger.Variable{Name: "list"})
	require.NoError(t, err)
	assert.Equal(t, "[1]", val.Value)
	require.Len(t, val.Variables, 1)
}

func TestClientErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantNotFound bool
		wantMessage  string
	}{
		{"404", http.StatusNotFound, "", true, ""},
		{"500 not found text", http.StatusInternalServerError, "Session s-1 not found", true, "Session s-1 not found"},
		{"500 not found json", http.StatusInternalServerError, `{"message":"Debug session Not Found"}`, true, "Debug session Not Found"},
		{"500 other", http.StatusInternalServerError, `{"message":"VM crashed"}`, false, "VM crashed"},
		{"400", http.StatusBadRequest, "bad expression", false, "bad expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			err := c.StepOver(context.Background(), "s-1")
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.IsSessionNotFound(err))

			if !tt.wantNotFound {
				var te *errors.TransportError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.status, te.StatusCode)
				assert.Equal(t, tt.wantMessage, te.Message)
			}
		})
	}
}

func TestClientConnectNotFoundIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.Connect(context.Background(), debugger.ConnectRequest{Host: "h", Port: 1})
	assert.False(t, errors.IsSessionNotFound(err))
	var te *errors.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestClientNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, err := New(url)
	require.NoError(t, err)

	err = c.Resume(context.Background(), "s-1")
	var te *errors.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 0, te.StatusCode)
	assert.True(t, errors.IsRetryable(err))
}

func TestClientRateLimitHonoursContext(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}, WithRateLimit(0.001, 1))

	require.NoError(t, c.Resume(context.Background(), "s-1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Resume(ctx, "s-1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientWithUnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "agent.sock")
	ln, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	server := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/debugger/resume/s-1", r.URL.Path)
		}),
	}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = server.Close() })

	c, err := Dial("unix://" + socketPath + "?base=/api/debugger")
	require.NoError(t, err)
	require.NoError(t, c.Resume(context.Background(), "s-1"))
}

func TestParseAgentURL(t *testing.T) {
	tests := []struct {
		name       string
		addr       string
		wantBase   string
		wantSocket string
		wantTLS    bool
		wantErr    bool
	}{
		{name: "default", addr: "", wantBase: DefaultAgentURL},
		{name: "http", addr: "http://agent:8000/api/debugger/", wantBase: "http://agent:8000/api/debugger"},
		{name: "https", addr: "https://agent/api", wantBase: "https://agent/api", wantTLS: true},
		{name: "unix", addr: "unix:///run/agent.sock", wantBase: "http://agent", wantSocket: "/run/agent.sock"},
		{name: "unix with base", addr: "unix:///run/agent.sock?base=api/debugger", wantBase: "http://agent/api/debugger", wantSocket: "/run/agent.sock"},
		{name: "unix without path", addr: "unix://", wantErr: true},
		{name: "http without host", addr: "http:///api", wantErr: true},
		{name: "unsupported scheme", addr: "ftp://agent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, transport, err := ParseAgentURL(tt.addr)
			if tt.wantErr {
				var cfgErr *errors.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantSocket, transport.SocketPath)
			assert.Equal(t, tt.wantTLS, transport.TLSConfig != nil)
		})
	}
}
