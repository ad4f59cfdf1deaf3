// Package voice holds the carrier-neutral render instructions produced by the
// dialogue and serializes them as TwiML.
package voice

import "time"

// InputMode is what a Gather listens for.
type InputMode string

const (
	InputDigits InputMode = "digits"
	InputSpeech InputMode = "speech"
)

// Instruction is one ordered directive in a voice response.
type Instruction interface {
	instruction()
}

// Say speaks text. Empty Voice/Rate/Language take the renderer defaults.
type Say struct {
	Text     string
	Voice    string
	Rate     string
	Language string
}

// Play streams an audio file.
type Play struct {
	URL string
}

// Gather collects the next caller input and posts it to Action.
type Gather struct {
	Modes       []InputMode
	Action      string
	Timeout     time.Duration
	NumDigits   int
	FinishOnKey string
	Language    string
	Prompts     []Say
}

// Record captures caller audio and posts the recording URL to Action.
type Record struct {
	Action    string
	MaxLength time.Duration
	Timeout   time.Duration
	PlayBeep  bool
}

// Redirect hands control to another step.
type Redirect struct {
	URL string
}

// Pause keeps the line quiet.
type Pause struct {
	Length time.Duration
}

// Hangup ends the call.
type Hangup struct{}

// StartStream forks call audio to a websocket.
type StartStream struct {
	URL string
}

func (Say) instruction()         {}
func (Play) instruction()        {}
func (Gather) instruction()      {}
func (Record) instruction()      {}
func (Redirect) instruction()    {}
func (Pause) instruction()       {}
func (Hangup) instruction()      {}
func (StartStream) instruction() {}

// Spoken reports whether the instructions give the caller something to hear
// or somewhere to go next.
func Spoken(instructions []Instruction) bool {
	for _, in := range instructions {
		switch v := in.(type) {
		case Say:
			if v.Text != "" {
				return true
			}
		case Gather:
			for _, p := range v.Prompts {
				if p.Text != "" {
					return true
				}
			}
		case Play, Redirect, Record:
			return true
		}
	}
	return false
}
