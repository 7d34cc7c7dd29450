// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the experimenter console
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Console owns the bubbletea program and its quit signal
type Console struct {
	program *tea.Program
	quit    chan struct{}
}

// NewModel creates a console model. audio may be nil when there is no
// sound device.
func NewModel(title, mapping string, keys Keys, audio Audio, quit chan struct{}) Model {
	return Model{
		keys:    keys,
		audio:   audio,
		quit:    quit,
		title:   title,
		mapping: mapping,
	}
}

// New creates the console. Call Run to take over the terminal.
func New(title, mapping string, keys Keys, audio Audio) *Console {
	quit := make(chan struct{}, 1)
	return &Console{
		program: tea.NewProgram(NewModel(title, mapping, keys, audio, quit), tea.WithAltScreen()),
		quit:    quit,
	}
}

// Run blocks until the program exits
func (c *Console) Run() error {
	_, err := c.program.Run()
	return err
}

// Send delivers a message to the model. Safe from any goroutine.
func (c *Console) Send(msg tea.Msg) {
	c.program.Send(msg)
}

// ShowFeedback displays practice feedback
func (c *Console) ShowFeedback(correct bool) {
	c.program.Send(FeedbackMsg{Correct: correct})
}

// Quit asks the program to exit
func (c *Console) Quit() {
	c.program.Quit()
}

// QuitChan signals when the user asks to quit
func (c *Console) QuitChan() <-chan struct{} {
	return c.quit
}
