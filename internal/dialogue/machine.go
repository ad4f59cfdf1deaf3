package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/bakame-ivr/internal/ai"
	"github.com/wolfman30/bakame-ivr/internal/session"
	"github.com/wolfman30/bakame-ivr/internal/transcription"
	"github.com/wolfman30/bakame-ivr/internal/voice"
	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Responder is the AI gateway as seen by the call flow.
type Responder interface {
	Generate(ctx context.Context, p ai.Prompt) ai.Reply
	Analyze(ctx context.Context, transcript string) ai.Analysis
	DetectLanguage(ctx context.Context, text string) string
	Translate(ctx context.Context, text, lang string) string
}

// Transcriber turns a finished recording into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioURL string) transcription.Transcript
}

// Outcomes reported for each handled turn.
const (
	OutcomePrompted      = "prompted"
	OutcomeAnswered      = "answered"
	OutcomeDispatched    = "dispatched"
	OutcomeInvalidChoice = "invalid_choice"
	OutcomeReprompt      = "reprompt"
	OutcomeDegraded      = "degraded"
	OutcomeMenuRequested = "menu_requested"
)

// Result is what one turn produces.
type Result struct {
	Next         Step
	Instructions []voice.Instruction
	Outcome      string
}

type Options struct {
	GatherTimeout   time.Duration
	RecordMaxLength time.Duration
	// RecordTimeout is the silence that ends a coaching recording.
	RecordTimeout time.Duration
	// HistoryLimit caps stored history messages; <= 0 is unbounded.
	HistoryLimit int
	// StreamURL, when set, starts a live media stream on the first welcome
	// prompt of a call.
	StreamURL string
	Logger    *logging.Logger
}

// Machine runs the call flow. It mutates the session it is given and never
// touches the store itself.
type Machine struct {
	ai          Responder
	transcriber Transcriber
	opts        Options
	events      *EventLogger
	logger      *logging.Logger

	prompts map[Step]func(context.Context, *session.Session) Result
	replies map[Step]func(context.Context, *session.Session, Input) Result
}

func NewMachine(responder Responder, transcriber Transcriber, opts Options) *Machine {
	if responder == nil {
		panic("dialogue: responder cannot be nil")
	}
	if transcriber == nil {
		panic("dialogue: transcriber cannot be nil")
	}
	if opts.GatherTimeout <= 0 {
		opts.GatherTimeout = 5 * time.Second
	}
	if opts.RecordMaxLength <= 0 {
		opts.RecordMaxLength = 30 * time.Second
	}
	if opts.RecordTimeout <= 0 {
		opts.RecordTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	m := &Machine{
		ai:          responder,
		transcriber: transcriber,
		opts:        opts,
		events:      NewEventLogger(opts.Logger),
		logger:      opts.Logger,
	}
	m.prompts = map[Step]func(context.Context, *session.Session) Result{
		StepWelcome:          m.welcomePrompt,
		StepCollectID:        m.collectIDPrompt,
		StepMenu:             m.menuPrompt,
		StepFact:             m.factPrompt,
		StepSpeechCoaching:   m.coachingPrompt,
		StepQuiz:             m.quizPrompt,
		StepOpenConversation: m.conversationPrompt,
	}
	m.replies = map[Step]func(context.Context, *session.Session, Input) Result{
		StepCollectName:      m.collectNameReply,
		StepCollectID:        m.collectIDReply,
		StepMenu:             m.menuReply,
		StepFact:             m.factReply,
		StepSpeechCoaching:   m.coachingReply,
		StepQuiz:             m.quizReply,
		StepOpenConversation: m.conversationReply,
	}
	return m
}

// Handle runs one turn. Unknown steps and phases fall back to the menu so
// the caller always hears something.
func (m *Machine) Handle(ctx context.Context, sess *session.Session, turn Turn) Result {
	if sess == nil {
		sess = session.New("")
	}
	var res Result
	switch turn.Phase {
	case PhaseReply:
		reply, ok := m.replies[turn.Step]
		if !ok {
			m.logger.Warn("no reply handler for step", "step", turn.Step)
			return m.enter(ctx, sess, StepMenu)
		}
		res = reply(ctx, sess, turn.Input)
	default:
		if _, ok := m.prompts[turn.Step]; !ok {
			m.logger.Warn("no prompt handler for step", "step", turn.Step)
			return m.enter(ctx, sess, StepMenu)
		}
		res = m.enter(ctx, sess, turn.Step)
	}

	if res.Next != turn.Step && !CanTransition(turn.Step, res.Next) {
		m.logger.Error("call flow left the transition table", "from", turn.Step, "to", res.Next)
	}
	m.events.StepHandled(ctx, sess.CallSID, turn, res)
	return res
}

func (m *Machine) enter(ctx context.Context, sess *session.Session, step Step) Result {
	prompt, ok := m.prompts[step]
	if !ok {
		prompt = m.menuPrompt
	}
	return prompt(ctx, sess)
}

func (m *Machine) welcomePrompt(ctx context.Context, sess *session.Session) Result {
	var out []voice.Instruction
	if m.opts.StreamURL != "" && !sess.StreamStarted {
		out = append(out, voice.StartStream{URL: m.opts.StreamURL})
		sess.StreamStarted = true
	}
	if sess.CallerName != "" {
		res := m.menuPrompt(ctx, sess)
		out = append(out, m.say(ctx, sess, fmt.Sprintf(welcomeBackText, sess.CallerName)))
		res.Instructions = append(out, res.Instructions...)
		return res
	}
	out = append(out,
		voice.Gather{
			Modes:   []voice.InputMode{voice.InputSpeech},
			Action:  ReplyPath(StepCollectName),
			Timeout: m.opts.GatherTimeout,
			Prompts: []voice.Say{m.say(ctx, sess, welcomeText)},
		},
		voice.Redirect{URL: ReplyPath(StepCollectName)},
	)
	return Result{Next: StepCollectName, Instructions: out, Outcome: OutcomePrompted}
}

func (m *Machine) collectNameReply(ctx context.Context, sess *session.Session, in Input) Result {
	name := cleanName(in.Speech)
	if in.Kind != InputSpeech || name == "" {
		return m.reprompt(ctx, sess, StepCollectName, nameMissingText)
	}
	sess.CallerName = name
	res := m.collectIDPrompt(ctx, sess)
	res.Outcome = OutcomeAnswered
	return res
}

func (m *Machine) collectIDPrompt(ctx context.Context, sess *session.Session) Result {
	text := askIDAnonText
	if sess.CallerName != "" {
		text = fmt.Sprintf(askIDText, sess.CallerName)
	}
	return Result{
		Next: StepCollectID,
		Instructions: []voice.Instruction{
			voice.Gather{
				Modes:       []voice.InputMode{voice.InputDigits},
				Action:      ReplyPath(StepCollectID),
				Timeout:     m.opts.GatherTimeout,
				FinishOnKey: "#",
				Prompts:     []voice.Say{m.say(ctx, sess, text)},
			},
			voice.Redirect{URL: ReplyPath(StepCollectID)},
		},
		Outcome: OutcomePrompted,
	}
}

func (m *Machine) collectIDReply(ctx context.Context, sess *session.Session, in Input) Result {
	id := strings.Trim(in.Digits, "#*")
	if in.Kind != InputDigits || id == "" {
		return m.reprompt(ctx, sess, StepCollectID, idMissingText)
	}
	sess.CallerID = id
	name := sess.CallerName
	if name == "" {
		name = "friend"
	}
	return Result{
		Next: StepMenu,
		Instructions: []voice.Instruction{
			m.say(ctx, sess, fmt.Sprintf(idCapturedText, name)),
			voice.Redirect{URL: PromptPath(StepMenu)},
		},
		Outcome: OutcomeAnswered,
	}
}

func (m *Machine) menuPrompt(ctx context.Context, sess *session.Session) Result {
	return Result{
		Next: StepMenu,
		Instructions: []voice.Instruction{
			voice.Gather{
				Modes:     []voice.InputMode{voice.InputDigits},
				Action:    ReplyPath(StepMenu),
				Timeout:   m.opts.GatherTimeout,
				NumDigits: 1,
				Prompts:   []voice.Say{m.say(ctx, sess, menuText)},
			},
			voice.Redirect{URL: ReplyPath(StepMenu)},
		},
		Outcome: OutcomePrompted,
	}
}

// menuReply dispatches a digit. Anything outside the menu, including no
// input at all, is an invalid choice that returns to the menu.
func (m *Machine) menuReply(ctx context.Context, sess *session.Session, in Input) Result {
	target, ok := menuChoices[in.Digits]
	if in.Kind != InputDigits || !ok {
		m.events.InvalidChoice(ctx, sess.CallSID, in.Digits)
		return Result{
			Next: StepMenu,
			Instructions: []voice.Instruction{
				m.say(ctx, sess, invalidChoiceText),
				voice.Redirect{URL: PromptPath(StepMenu)},
			},
			Outcome: OutcomeInvalidChoice,
		}
	}
	res := m.enter(ctx, sess, target)
	if res.Outcome == OutcomePrompted {
		res.Outcome = OutcomeDispatched
	}
	return res
}

func (m *Machine) factPrompt(ctx context.Context, sess *session.Session) Result {
	reply := m.generate(ctx, sess, ai.Prompt{Text: factRequest})
	outcome := OutcomePrompted
	if reply.Degraded {
		outcome = OutcomeDegraded
	}
	return Result{
		Next: StepFact,
		Instructions: []voice.Instruction{
			voice.Say{Text: reply.Text},
			m.speechGather(StepFact, m.say(ctx, sess, factQuestionText)),
			voice.Redirect{URL: ReplyPath(StepFact)},
		},
		Outcome: outcome,
	}
}

func (m *Machine) factReply(ctx context.Context, sess *session.Session, in Input) Result {
	if in.Kind == InputDigits {
		return m.menuReply(ctx, sess, in)
	}
	if in.Kind != InputSpeech {
		return m.reprompt(ctx, sess, StepFact, factMissingText)
	}
	reply := m.generate(ctx, sess, ai.Prompt{Text: factReplyRequest + in.Speech})
	return m.respond(StepFact, reply)
}

func (m *Machine) coachingPrompt(ctx context.Context, sess *session.Session) Result {
	return Result{
		Next: StepSpeechCoaching,
		Instructions: []voice.Instruction{
			m.say(ctx, sess, coachingIntroText),
			m.record(),
			voice.Redirect{URL: ReplyPath(StepSpeechCoaching)},
		},
		Outcome: OutcomePrompted,
	}
}

// coachingReply transcribes the recording and asks for feedback on it. The
// AI is asked even when transcription failed so the caller still hears a reply.
func (m *Machine) coachingReply(ctx context.Context, sess *session.Session, in Input) Result {
	if in.Kind != InputRecording {
		return m.reprompt(ctx, sess, StepSpeechCoaching, coachingMissingText)
	}
	transcript := m.transcriber.Transcribe(ctx, in.RecordingURL)
	if transcript.Available {
		sess.LastTranscript = transcript.Text
	} else {
		m.events.UpstreamDegraded(ctx, sess.CallSID, "transcription", StepSpeechCoaching)
	}
	reply := m.generate(ctx, sess, ai.Prompt{Text: coachingRequest + transcript.Text})
	outcome := OutcomeAnswered
	if reply.Degraded || !transcript.Available {
		outcome = OutcomeDegraded
	}
	return Result{
		Next: StepSpeechCoaching,
		Instructions: []voice.Instruction{
			voice.Say{Text: reply.Text},
			m.say(ctx, sess, coachingAgainText),
			m.record(),
			voice.Redirect{URL: ReplyPath(StepSpeechCoaching)},
		},
		Outcome: outcome,
	}
}

func (m *Machine) quizPrompt(ctx context.Context, sess *session.Session) Result {
	reply := m.generate(ctx, sess, ai.Prompt{Text: quizRequest})
	outcome := OutcomePrompted
	sess.QuizQuestion = ""
	if reply.Degraded {
		outcome = OutcomeDegraded
	} else {
		sess.QuizQuestion = reply.Text
	}
	return Result{
		Next: StepQuiz,
		Instructions: []voice.Instruction{
			m.speechGather(StepQuiz, voice.Say{Text: reply.Text}),
			voice.Redirect{URL: ReplyPath(StepQuiz)},
		},
		Outcome: outcome,
	}
}

// quizReply delegates the verdict to the AI; there is no answer key.
func (m *Machine) quizReply(ctx context.Context, sess *session.Session, in Input) Result {
	if in.Kind == InputDigits {
		return m.menuReply(ctx, sess, in)
	}
	if in.Kind != InputSpeech {
		return m.reprompt(ctx, sess, StepQuiz, quizMissingText)
	}
	p := ai.Prompt{Text: quizAnswerRequest + in.Speech}
	if sess.QuizQuestion != "" {
		p.Instructions = []string{fmt.Sprintf(quizContextInstruction, sess.QuizQuestion)}
	}
	reply := m.generate(ctx, sess, p)
	sess.QuizQuestion = ""
	return m.respond(StepQuiz, reply)
}

func (m *Machine) conversationPrompt(ctx context.Context, sess *session.Session) Result {
	return Result{
		Next: StepOpenConversation,
		Instructions: []voice.Instruction{
			m.speechGather(StepOpenConversation, m.say(ctx, sess, conversationOpenText)),
			voice.Redirect{URL: ReplyPath(StepOpenConversation)},
		},
		Outcome: OutcomePrompted,
	}
}

func (m *Machine) conversationReply(ctx context.Context, sess *session.Session, in Input) Result {
	if in.Kind == InputDigits {
		return m.menuReply(ctx, sess, in)
	}
	if in.Kind != InputSpeech {
		return m.reprompt(ctx, sess, StepOpenConversation, conversationMissingText)
	}

	sess.LastTranscript = in.Speech
	sess.Language = m.ai.DetectLanguage(ctx, in.Speech)
	analysis := m.ai.Analyze(ctx, in.Speech)
	sess.Sentiment = analysis.Score
	sess.LastIntent = analysis.Intent

	if analysis.Intent == ai.IntentMenu {
		return Result{
			Next: StepMenu,
			Instructions: []voice.Instruction{
				m.say(ctx, sess, backToMenuText),
				voice.Redirect{URL: PromptPath(StepMenu)},
			},
			Outcome: OutcomeMenuRequested,
		}
	}

	p := ai.Prompt{Text: conversationRequest + in.Speech}
	if analysis.Score <= empathyThreshold {
		p.Instructions = []string{empathyInstruction}
	}
	return m.respond(StepOpenConversation, m.generate(ctx, sess, p))
}

// generate calls the AI with the session history and language, appending the
// exchange only when the reply is genuine.
func (m *Machine) generate(ctx context.Context, sess *session.Session, p ai.Prompt) ai.Reply {
	history := sess.HistorySnapshot()
	p.History = make([]ai.ChatMessage, 0, len(history))
	for _, msg := range history {
		p.History = append(p.History, ai.ChatMessage{Role: msg.Role, Content: msg.Content})
	}
	p.Language = sess.Language
	reply := m.ai.Generate(ctx, p)
	if reply.Degraded {
		m.events.UpstreamDegraded(ctx, sess.CallSID, "ai", "")
		return reply
	}
	sess.AppendExchange(p.Text, reply.Text, m.opts.HistoryLimit)
	return reply
}

// respond speaks an AI reply and loops back to step's prompt.
func (m *Machine) respond(step Step, reply ai.Reply) Result {
	outcome := OutcomeAnswered
	if reply.Degraded {
		outcome = OutcomeDegraded
	}
	return Result{
		Next: step,
		Instructions: []voice.Instruction{
			voice.Say{Text: reply.Text},
			voice.Redirect{URL: PromptPath(step)},
		},
		Outcome: outcome,
	}
}

// reprompt apologises and sends the caller back to the step that asked.
func (m *Machine) reprompt(ctx context.Context, sess *session.Session, step Step, text string) Result {
	t, _ := Lookup(step)
	target := t.Reprompt
	if target == "" {
		target = step
	}
	m.events.Reprompt(ctx, sess.CallSID, step, target)
	return Result{
		Next: target,
		Instructions: []voice.Instruction{
			m.say(ctx, sess, text),
			voice.Redirect{URL: PromptPath(target)},
		},
		Outcome: OutcomeReprompt,
	}
}

// speechGather collects speech for step's reply; a single key press is also
// accepted so the caller can jump back into the menu.
func (m *Machine) speechGather(step Step, prompt voice.Say) voice.Gather {
	return voice.Gather{
		Modes:     []voice.InputMode{voice.InputDigits, voice.InputSpeech},
		Action:    ReplyPath(step),
		Timeout:   m.opts.GatherTimeout,
		NumDigits: 1,
		Prompts:   []voice.Say{prompt},
	}
}

func (m *Machine) record() voice.Record {
	return voice.Record{
		Action:    ReplyPath(StepSpeechCoaching),
		MaxLength: m.opts.RecordMaxLength,
		Timeout:   m.opts.RecordTimeout,
	}
}

func (m *Machine) say(ctx context.Context, sess *session.Session, text string) voice.Say {
	return voice.Say{Text: m.ai.Translate(ctx, text, sess.Language)}
}

func cleanName(speech string) string {
	name := strings.TrimSpace(speech)
	lower := strings.ToLower(name)
	for _, prefix := range []string{"my name is ", "i am ", "i'm ", "it's ", "this is "} {
		if strings.HasPrefix(lower, prefix) {
			name = name[len(prefix):]
			break
		}
	}
	return strings.Trim(name, " .,!?")
}
