package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
)

var frames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a message while a long operation runs.
type Spinner struct {
	writer   io.Writer
	interval time.Duration
	noColor  bool

	mu      sync.Mutex
	message string
	done    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a spinner. It does nothing until Start.
func NewSpinner(w io.Writer, message string, noColor bool) *Spinner {
	return &Spinner{
		writer:   w,
		interval: 100 * time.Millisecond,
		noColor:  noColor,
		message:  message,
	}
}

// Start begins the animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.animate(s.done, s.stopped)
}

// SetMessage changes the message shown next to the spinner.
func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	done, stopped := s.done, s.stopped
	s.done = nil
	s.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	<-stopped
	fmt.Fprint(s.writer, "\r\033[K")
}

func (s *Spinner) animate(done, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}
	for i := 0; ; i = (i + 1) % len(frames) {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.message
			s.mu.Unlock()
			cyan.Fprintf(s.writer, "\r%s %s", frames[i], msg)
		}
	}
}

// WithSpinner runs fn while a spinner shows message, then reports the
// outcome on its own line.
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	s := NewSpinner(w, message, noColor)
	s.Start()
	err := fn()
	s.Stop()

	if err != nil {
		Message{Problem: message + " failed", NoColor: noColor}.Write(w)
		return err
	}
	fmt.Fprintln(w, Success(message, noColor))
	return nil
}
