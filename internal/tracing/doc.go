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

/*
Package tracing configures the OpenTelemetry SDK for rdbg.

Every agent command the debugger session issues runs inside a span started
with otel.Tracer, so nothing is recorded until a provider is installed.
NewProvider installs one as the global provider.

# Exporters

	none       spans are dropped (default)
	console    spans are printed with the stdout exporter
	otlp-http  OTLP over HTTP
	otlp-grpc  OTLP over gRPC

# Environment

	RDBG_TRACE=1                      console exporter on stderr
	RDBG_TRACE_EXPORTER               explicit exporter name
	OTEL_EXPORTER_OTLP_ENDPOINT       OTLP endpoint (selects otlp-http when set)
	OTEL_EXPORTER_OTLP_INSECURE=true  disable TLS for OTLP
	RDBG_TRACE_SAMPLE_RATE            ratio between 0 and 1
*/
package tracing
