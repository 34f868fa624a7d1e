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

package shared

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/tombee/rdbg/internal/console"
)

var spinnerFrames = []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")

const spinnerInterval = 100 * time.Millisecond

// Spinner draws a progress line while a request to the agent is pending.
// Writers that are not color terminals get the message once, no animation.
type Spinner struct {
	out      io.Writer
	animated bool

	mu      sync.Mutex
	started time.Time
	stop    chan struct{}
	stopped sync.WaitGroup
}

// NewSpinner creates a spinner writing to stderr.
func NewSpinner() *Spinner {
	return NewSpinnerTo(os.Stderr)
}

// NewSpinnerTo creates a spinner writing to w.
func NewSpinnerTo(w io.Writer) *Spinner {
	return &Spinner{out: w, animated: console.ColorEnabled(w)}
}

// Start shows message. Calling Start on a running spinner does nothing.
func (s *Spinner) Start(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}

	s.started = time.Now()
	s.stop = make(chan struct{})

	if !s.animated {
		fmt.Fprintln(s.out, message)
		return
	}
	s.stopped.Add(1)
	go s.run(s.stop, message, s.started)
}

// Stop clears the progress line and returns how long the spinner ran.
func (s *Spinner) Stop() time.Duration {
	s.mu.Lock()
	if s.stop == nil {
		s.mu.Unlock()
		return 0
	}
	close(s.stop)
	s.stop = nil
	elapsed := time.Since(s.started)
	s.mu.Unlock()

	s.stopped.Wait()
	if s.animated {
		fmt.Fprint(s.out, "\r\033[K")
	}
	return elapsed
}

func (s *Spinner) run(stop <-chan struct{}, message string, started time.Time) {
	defer s.stopped.Done()

	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		fmt.Fprintf(s.out, "\r\033[K%s %s %s", message,
			RenderLabel(string(spinnerFrames[frame%len(spinnerFrames)])),
			RenderLabel("("+formatElapsed(time.Since(started))+")"))
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

// formatElapsed renders d rounded to whole seconds as "42s", "2m" or "1m 5s".
func formatElapsed(d time.Duration) string {
	secs := int(d.Round(time.Second).Seconds())
	switch {
	case secs < 60:
		return fmt.Sprintf("%ds", secs)
	case secs%60 == 0:
		return fmt.Sprintf("%dm", secs/60)
	default:
		return fmt.Sprintf("%dm %ds", secs/60, secs%60)
	}
}
