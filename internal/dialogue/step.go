// Package dialogue is the call-flow state machine: it maps the caller's
// current step and input to the next step and the voice instructions to play.
package dialogue

// Step is a named state in the call flow.
type Step string

const (
	StepWelcome          Step = "welcome"
	StepCollectName      Step = "collect-name"
	StepCollectID        Step = "collect-id"
	StepMenu             Step = "menu"
	StepFact             Step = "fact"
	StepSpeechCoaching   Step = "speech-coaching"
	StepQuiz             Step = "quiz"
	StepOpenConversation Step = "open-conversation"
)

// Phase distinguishes the two carrier callbacks every step can receive.
type Phase string

const (
	// PhasePrompt speaks and asks; no caller input is expected.
	PhasePrompt Phase = "prompt"
	// PhaseReply handles the input collected by the previous prompt.
	PhaseReply Phase = "reply"
)

// Transition is one row of the call-flow table.
type Transition struct {
	Step Step
	// PromptPath is empty for steps whose question is asked by another step.
	PromptPath string
	ReplyPath  string
	// Reprompt is where an empty reply is sent.
	Reprompt Step
	// Next lists every step a reply may lead to.
	Next []Step
}

var menuChoices = map[string]Step{
	"1": StepFact,
	"2": StepSpeechCoaching,
	"3": StepQuiz,
	"4": StepOpenConversation,
}

var menuExits = []Step{StepMenu, StepFact, StepSpeechCoaching, StepQuiz, StepOpenConversation}

var transitions = []Transition{
	{Step: StepWelcome, PromptPath: "/ivr", Next: []Step{StepCollectName, StepMenu}},
	{Step: StepCollectName, ReplyPath: "/collect-name", Reprompt: StepWelcome, Next: []Step{StepWelcome, StepCollectID}},
	{Step: StepCollectID, PromptPath: "/collect-id", ReplyPath: "/collect-id/reply", Reprompt: StepCollectID, Next: []Step{StepCollectID, StepMenu}},
	{Step: StepMenu, PromptPath: "/menu", ReplyPath: "/handle-key", Reprompt: StepMenu, Next: menuExits},
	{Step: StepFact, PromptPath: "/fact-session", ReplyPath: "/fact-response", Reprompt: StepFact, Next: menuExits},
	{Step: StepSpeechCoaching, PromptPath: "/speech-coaching", ReplyPath: "/analyze-speech", Reprompt: StepSpeechCoaching, Next: []Step{StepSpeechCoaching}},
	{Step: StepQuiz, PromptPath: "/english-quiz", ReplyPath: "/quiz-answer", Reprompt: StepQuiz, Next: menuExits},
	{Step: StepOpenConversation, PromptPath: "/open-conversation", ReplyPath: "/conversation-response", Reprompt: StepOpenConversation, Next: menuExits},
}

var transitionsByStep = func() map[Step]Transition {
	m := make(map[Step]Transition, len(transitions))
	for _, t := range transitions {
		m[t.Step] = t
	}
	return m
}()

// Transitions returns the call-flow table in declaration order.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// Lookup returns the table row for step.
func Lookup(step Step) (Transition, bool) {
	t, ok := transitionsByStep[step]
	return t, ok
}

// CanTransition reports whether a reply at from may lead to to.
func CanTransition(from, to Step) bool {
	t, ok := transitionsByStep[from]
	if !ok {
		return false
	}
	for _, s := range t.Next {
		if s == to {
			return true
		}
	}
	return false
}

// PromptPath is the callback that runs step's prompt phase. Steps asked by
// another step resolve to the asking step's path.
func PromptPath(step Step) string {
	t, ok := transitionsByStep[step]
	if !ok {
		return transitionsByStep[StepMenu].PromptPath
	}
	if t.PromptPath == "" {
		return PromptPath(t.Reprompt)
	}
	return t.PromptPath
}

// ReplyPath is the callback that receives input for step.
func ReplyPath(step Step) string {
	return transitionsByStep[step].ReplyPath
}
