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

// Package jq runs gojq filters over debugger data such as stack frame
// dumps.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/tombee/rdbg/pkg/errors"
)

const (
	// DefaultTimeout bounds a single filter run.
	DefaultTimeout = 1 * time.Second
	// DefaultMaxInputSize is the largest encoded input accepted (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Filter is a compiled jq expression.
type Filter struct {
	expr         string
	code         *gojq.Code
	timeout      time.Duration
	maxInputSize int
}

// Compile parses and compiles expr. An empty expression is the identity.
func Compile(expr string) (*Filter, error) {
	if expr == "" {
		expr = "."
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, &errors.ValidationError{Field: "jq", Message: fmt.Sprintf("invalid jq expression: %v", err)}
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, &errors.ValidationError{Field: "jq", Message: fmt.Sprintf("jq compilation failed: %v", err)}
	}
	return &Filter{
		expr:         expr,
		code:         code,
		timeout:      DefaultTimeout,
		maxInputSize: DefaultMaxInputSize,
	}, nil
}

// String returns the source expression.
func (f *Filter) String() string { return f.expr }

// Run applies the filter to v, which may be any JSON-encodable value, and
// returns every output.
func (f *Filter) Run(ctx context.Context, v any) ([]any, error) {
	input, err := normalize(v, f.maxInputSize)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	var results []any
	iter := f.code.RunWithContext(runCtx, input)
	for {
		out, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := out.(error); isErr {
			if runCtx.Err() != nil {
				return nil, fmt.Errorf("jq execution timeout after %v", f.timeout)
			}
			return nil, fmt.Errorf("jq: %w", err)
		}
		results = append(results, out)
	}
	return results, nil
}

// normalize converts v into the map/slice form gojq expects.
func normalize(v any, limit int) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal data: %w", err)
	}
	if len(data) > limit {
		return nil, fmt.Errorf("data size (%d bytes) exceeds maximum (%d bytes)", len(data), limit)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return out, nil
}

// Apply compiles expr and runs it over v, encoding each result as indented
// JSON. A string result is returned unquoted.
func Apply(ctx context.Context, expr string, v any) ([]string, error) {
	f, err := Compile(expr)
	if err != nil {
		return nil, err
	}
	results, err := f.Run(ctx, v)
	if err != nil {
		return nil, err
	}
	return Format(results)
}

// Format renders results one per line: strings unquoted, everything else
// as indented JSON.
func Format(results []any) ([]string, error) {
	out := make([]string, 0, len(results))
	for _, r := range results {
		if s, ok := r.(string); ok {
			out = append(out, s)
			continue
		}
		data, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		out = append(out, string(data))
	}
	return out, nil
}
