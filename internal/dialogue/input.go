package dialogue

import "strings"

// InputKind says which carrier field carried the caller's input.
type InputKind string

const (
	InputNone      InputKind = "none"
	InputDigits    InputKind = "digits"
	InputSpeech    InputKind = "speech"
	InputRecording InputKind = "recording"
)

type Input struct {
	Kind         InputKind
	Digits       string
	Speech       string
	RecordingURL string
}

// ParseInput classifies carrier form values. A recording wins over digits,
// digits over speech; all blank is InputNone.
func ParseInput(digits, speech, recordingURL string) Input {
	in := Input{
		Digits:       strings.TrimSpace(digits),
		Speech:       strings.TrimSpace(speech),
		RecordingURL: strings.TrimSpace(recordingURL),
	}
	switch {
	case in.RecordingURL != "":
		in.Kind = InputRecording
	case in.Digits != "":
		in.Kind = InputDigits
	case in.Speech != "":
		in.Kind = InputSpeech
	default:
		in.Kind = InputNone
	}
	return in
}

// Turn is one carrier callback.
type Turn struct {
	Step  Step
	Phase Phase
	Input Input
}
