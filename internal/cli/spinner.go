package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Spinner provides a simple progress indicator with context cancellation support.
type Spinner struct {
	w       io.Writer
	message string
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	stopped chan struct{}
	frames  []string

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
}

// newSpinner creates a spinner drawing to w that stops when ctx is cancelled.
func newSpinner(ctx context.Context, w io.Writer, message string) *Spinner {
	spinnerCtx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:       w,
		message: message,
		ctx:     spinnerCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	}
}

// Start begins the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.stopped)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		i := 0
		for {
			select {
			case <-s.ctx.Done():
				s.clearLine()
				return
			case <-s.done:
				return
			case <-ticker.C:
				frame := s.frames[i%len(s.frames)]
				s.mu.Lock()
				fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(s.message))
				s.mu.Unlock()
				i++
			}
		}
	}()
}

// Stop stops the spinner and clears the line. It may be called more than
// once, and without Start.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.stopped
		}
		s.cancel()
		s.clearLine()
	})
}

func (s *Spinner) clearLine() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(s.message)+4))
}

// StopWithSuccess stops the spinner and shows a success message.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	printSuccess(s.w, "%s", message)
}

// StopWithError stops the spinner and shows an error message.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	printError(s.w, "%s", message)
}

// Cancelled reports whether the parent context ended before Stop.
func (s *Spinner) Cancelled() bool {
	select {
	case <-s.done:
		return false
	default:
	}
	return s.ctx.Err() != nil
}
