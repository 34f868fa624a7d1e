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

package log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandMiddleware_Success(t *testing.T) {
	var buf bytes.Buffer
	m := NewCommandMiddleware(New(&Config{Level: "debug", Output: &buf}))

	called := false
	err := m.Do(&CommandCall{Command: "step_over", SessionID: "s-1", Remote: "agent:8000"}, func() error {
		called = true
		return nil
	})

	assert.NoError(t, err)
	assert.True(t, called)
	out := buf.String()
	assert.Contains(t, out, "agent command sent")
	assert.Contains(t, out, "agent command completed")
	assert.Contains(t, out, "command=step_over")
	assert.Contains(t, out, "session_id=s-1")
}

func TestCommandMiddleware_Failure(t *testing.T) {
	var buf bytes.Buffer
	m := NewCommandMiddleware(New(&Config{Level: "warn", Output: &buf}))

	boom := errors.New("boom")
	err := m.Do(&CommandCall{Command: "resume"}, func() error { return boom })

	assert.ErrorIs(t, err, boom)
	out := buf.String()
	assert.NotContains(t, out, "agent command sent")
	assert.Contains(t, out, "agent command failed")
	assert.Contains(t, out, "error=boom")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}
