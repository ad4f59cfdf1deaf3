package dialogue

import (
	"context"
	"io"

	"github.com/wolfman30/bakame-ivr/internal/ai"
	"github.com/wolfman30/bakame-ivr/internal/transcription"
	"github.com/wolfman30/bakame-ivr/internal/voice"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

type fakeAI struct {
	replies      []ai.Reply
	prompts      []ai.Prompt
	analysis     ai.Analysis
	language     string
	translations map[string]string
}

func (f *fakeAI) Generate(_ context.Context, p ai.Prompt) ai.Reply {
	f.prompts = append(f.prompts, p)
	if len(f.replies) == 0 {
		return ai.Reply{Text: "ai reply"}
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r
}

func (f *fakeAI) Analyze(context.Context, string) ai.Analysis {
	if f.analysis.Intent == "" {
		return ai.Analysis{Intent: ai.IntentStatement}
	}
	return f.analysis
}

func (f *fakeAI) DetectLanguage(context.Context, string) string {
	if f.language == "" {
		return "en"
	}
	return f.language
}

func (f *fakeAI) Translate(_ context.Context, text, lang string) string {
	if lang == "" || lang == "en" {
		return text
	}
	if t, ok := f.translations[text]; ok {
		return t
	}
	return "[" + lang + "] " + text
}

type fakeTranscriber struct {
	result transcription.Transcript
	urls   []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, url string) transcription.Transcript {
	f.urls = append(f.urls, url)
	return f.result
}

func quietLogger() *logging.Logger { return logging.NewWithWriter("error", io.Discard) }

func newTestMachine(responder Responder, transcriber Transcriber) *Machine {
	if transcriber == nil {
		transcriber = &fakeTranscriber{result: transcription.Transcript{Text: "hello", Available: true}}
	}
	return NewMachine(responder, transcriber, Options{Logger: quietLogger()})
}

// spoken lists every Say text in order, including Gather prompts.
func spoken(instructions []voice.Instruction) []string {
	var out []string
	for _, in := range instructions {
		switch v := in.(type) {
		case voice.Say:
			out = append(out, v.Text)
		case voice.Gather:
			for _, p := range v.Prompts {
				out = append(out, p.Text)
			}
		}
	}
	return out
}

func lastRedirect(instructions []voice.Instruction) string {
	for i := len(instructions) - 1; i >= 0; i-- {
		if r, ok := instructions[i].(voice.Redirect); ok {
			return r.URL
		}
	}
	return ""
}

func firstGather(instructions []voice.Instruction) (voice.Gather, bool) {
	for _, in := range instructions {
		if g, ok := in.(voice.Gather); ok {
			return g, true
		}
	}
	return voice.Gather{}, false
}
