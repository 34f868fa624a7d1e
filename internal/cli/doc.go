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
Package cli provides the root command of rdbg.

# Command Tree

	rdbg
	├── attach        Attach to a debuggee and start the shell
	├── detach        End the persisted session
	├── status        Show the persisted session
	├── recover       Re-attach to the persisted session
	├── step          into | over | out
	├── resume        Resume until the next breakpoint
	├── eval          Evaluate an expression
	├── set           Assign a variable
	├── vars          Show the current frame
	├── break         add | delete | clear | list
	├── config        show | path | validate
	├── completion    Generate shell completion scripts
	├── version       Show version
	└── help          Show help

# Global Flags

	--verbose, -v    Enable debug logging
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file
	--agent          Debug agent URL, overriding the config file
*/
package cli
