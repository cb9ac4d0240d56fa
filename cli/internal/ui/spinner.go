package ui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
)

// Spinner is a blocking line spinner for steps that happen before the
// presence view takes over the terminal.
type Spinner struct {
	mu       sync.Mutex
	message  string
	frames   []string
	interval time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// NewConnectionSpinner creates a globe spinner for network steps.
func NewConnectionSpinner(message string) *Spinner {
	return newSpinner(message, spinner.Globe, 180*time.Millisecond)
}

func newSpinner(message string, s spinner.Spinner, interval time.Duration) *Spinner {
	return &Spinner{
		message:  message,
		frames:   s.Frames,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (s *Spinner) Start() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			s.mu.Lock()
			select {
			case <-s.done:
				s.mu.Unlock()
				return
			default:
			}
			fmt.Printf("\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), s.message)
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the line. It is safe to call more than once.
func (s *Spinner) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		close(s.done)
		fmt.Print("\r\033[K")
		s.mu.Unlock()
	})
}

// Success replaces the spinner with a success line.
func (s *Spinner) Success(message string) {
	s.Stop()
	PrintSuccess(message)
}
