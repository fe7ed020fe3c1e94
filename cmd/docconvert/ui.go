package main

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
)

// Spinner wraps a spinner for indeterminate progress. A disabled spinner is a no-op.
type Spinner struct {
	spinner *spinner.Spinner
}

func newSpinner(w io.Writer, message string, enabled bool) *Spinner {
	if !enabled {
		return &Spinner{}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + message
	return &Spinner{spinner: s}
}

func (s *Spinner) Start() {
	if s.spinner != nil {
		s.spinner.Start()
	}
}

func (s *Spinner) Stop() {
	if s.spinner != nil {
		s.spinner.Stop()
	}
}

func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}

func detail(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "  %s %s\n", color.New(color.Faint).Sprintf("%-9s", label+":"), value)
}
