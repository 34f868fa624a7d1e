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

// Package workspace is the filesystem-backed editor surface for a debug
// session.
//
// Source roots are discovered under a project directory with doublestar
// patterns. The default patterns match Maven and Gradle layouts:
//
//	**/src/main/java
//	**/src/test/java
//
// When no pattern matches, the project directory itself is the only root.
// Editor effects (opening a file, moving the execution marker) are reported
// to a Sink so that a terminal front end can render them.
package workspace
