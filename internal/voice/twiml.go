package voice

import (
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// ErrEmptyResponse is returned when a response would leave the caller in silence.
var ErrEmptyResponse = errors.New("voice: response has nothing to say")

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// Renderer serializes instructions as TwiML.
type Renderer struct {
	Voice    string
	Rate     string
	Language string
}

// NewRenderer returns a renderer whose Say verbs default to voice and rate.
func NewRenderer(voice, rate string) *Renderer {
	return &Renderer{Voice: voice, Rate: rate}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

type prosodyXML struct {
	XMLName xml.Name `xml:"prosody"`
	Rate    string   `xml:"rate,attr"`
	Text    string   `xml:",chardata"`
}

type sayXML struct {
	XMLName  xml.Name    `xml:"Say"`
	Voice    string      `xml:"voice,attr,omitempty"`
	Language string      `xml:"language,attr,omitempty"`
	Text     string      `xml:",chardata"`
	Prosody  *prosodyXML `xml:",omitempty"`
}

type playXML struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

type gatherXML struct {
	XMLName     xml.Name `xml:"Gather"`
	Input       string   `xml:"input,attr,omitempty"`
	Action      string   `xml:"action,attr,omitempty"`
	Method      string   `xml:"method,attr,omitempty"`
	Timeout     int      `xml:"timeout,attr,omitempty"`
	NumDigits   int      `xml:"numDigits,attr,omitempty"`
	FinishOnKey string   `xml:"finishOnKey,attr,omitempty"`
	Language    string   `xml:"language,attr,omitempty"`
	Says        []sayXML
}

type recordXML struct {
	XMLName   xml.Name `xml:"Record"`
	Action    string   `xml:"action,attr,omitempty"`
	Method    string   `xml:"method,attr,omitempty"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	PlayBeep  string   `xml:"playBeep,attr"`
}

type redirectXML struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type pauseXML struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type hangupXML struct {
	XMLName xml.Name `xml:"Hangup"`
}

type streamXML struct {
	XMLName xml.Name `xml:"Stream"`
	URL     string   `xml:"url,attr"`
}

type startXML struct {
	XMLName xml.Name `xml:"Start"`
	Stream  streamXML
}

// Render produces a complete TwiML document, preserving instruction order.
func (r *Renderer) Render(instructions []Instruction) ([]byte, error) {
	if !Spoken(instructions) {
		return nil, ErrEmptyResponse
	}
	resp := twimlResponse{Verbs: make([]any, 0, len(instructions))}
	for _, in := range instructions {
		verb, err := r.verb(in)
		if err != nil {
			return nil, err
		}
		resp.Verbs = append(resp.Verbs, verb)
	}
	body, err := xml.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("voice: marshal twiml: %w", err)
	}
	return append([]byte(xmlHeader), body...), nil
}

func (r *Renderer) verb(in Instruction) (any, error) {
	switch v := in.(type) {
	case Say:
		return r.say(v), nil
	case Play:
		return playXML{URL: v.URL}, nil
	case Gather:
		g := gatherXML{
			Input:       inputAttr(v.Modes),
			Action:      v.Action,
			Method:      "POST",
			Timeout:     seconds(v.Timeout),
			NumDigits:   v.NumDigits,
			FinishOnKey: v.FinishOnKey,
			Language:    v.Language,
		}
		for _, p := range v.Prompts {
			g.Says = append(g.Says, r.say(p))
		}
		return g, nil
	case Record:
		beep := "false"
		if v.PlayBeep {
			beep = "true"
		}
		return recordXML{
			Action:    v.Action,
			Method:    "POST",
			MaxLength: seconds(v.MaxLength),
			Timeout:   seconds(v.Timeout),
			PlayBeep:  beep,
		}, nil
	case Redirect:
		return redirectXML{Method: "POST", URL: v.URL}, nil
	case Pause:
		return pauseXML{Length: seconds(v.Length)}, nil
	case Hangup:
		return hangupXML{}, nil
	case StartStream:
		return startXML{Stream: streamXML{URL: v.URL}}, nil
	default:
		return nil, fmt.Errorf("voice: unsupported instruction %T", in)
	}
}

func (r *Renderer) say(s Say) sayXML {
	out := sayXML{
		Voice:    firstNonEmpty(s.Voice, r.Voice),
		Language: firstNonEmpty(s.Language, r.Language),
	}
	rate := firstNonEmpty(s.Rate, r.Rate)
	if rate == "" || rate == "100%" {
		out.Text = s.Text
		return out
	}
	out.Prosody = &prosodyXML{Rate: rate, Text: s.Text}
	return out
}

func inputAttr(modes []InputMode) string {
	parts := make([]string, 0, len(modes))
	for _, m := range modes {
		switch m {
		case InputDigits:
			parts = append(parts, "dtmf")
		case InputSpeech:
			parts = append(parts, "speech")
		}
	}
	return strings.Join(parts, " ")
}

func seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
