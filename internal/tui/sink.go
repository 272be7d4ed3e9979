package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/banshee-data/liframe/internal/frame"
)

// Sender delivers messages to a running program. *tea.Program implements it.
type Sender interface {
	Send(msg tea.Msg)
}

// Sink forwards processed frames to the program.
type Sink struct {
	Program Sender
}

func (s Sink) Update(fc *frame.Context) error {
	s.Program.Send(FrameMsg{
		Index:    fc.Index,
		MaxIndex: fc.MaxIndex,
		Present:  fc.Present(),
		Points:   fc.Cloud.Len(),
		Labels:   fc.Labels.Len(),
	})
	return nil
}

func (Sink) Redraw() error { return nil }

// Close asks the program to exit.
func (s Sink) Close() error {
	s.Program.Send(tea.Quit())
	return nil
}
