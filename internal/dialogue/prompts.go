package dialogue

// Spoken text for the call flow. Static lines are translated to the caller's
// language when it is not English.
const (
	welcomeText     = "Welcome to Bakame, your English learning companion. Please tell me your name."
	welcomeBackText = "Welcome back, %s."
	nameMissingText = "Sorry, I didn't catch your name."
	askIDText       = "Thank you, %s. Please enter your learner ID on the keypad, followed by the pound key."
	askIDAnonText   = "Please enter your learner ID on the keypad, followed by the pound key."
	idMissingText   = "I didn't get your ID. Let's try again."
	idCapturedText  = "Thanks, %s. Let's get started."

	menuText          = "Press 1 for an interactive fact session. Press 2 for speech coaching. Press 3 for an English quiz. Press 4 to have a conversation in English."
	invalidChoiceText = "Invalid choice. Please try again."

	factQuestionText = "What do you think about this fact?"
	factMissingText  = "I didn't hear anything. Let's try another fact."

	coachingIntroText   = "Please speak. I will give you feedback as you talk."
	coachingMissingText = "I didn't hear anything. Please try again."
	coachingAgainText   = "Say something else and I will keep helping you."

	quizMissingText = "I didn't hear an answer. Let's try another question."

	conversationOpenText    = "Let's have a conversation! What would you like to talk about?"
	conversationMissingText = "I didn't hear you. Try again."
	backToMenuText          = "Okay, let's go back to the main menu."
)

// Requests sent to the AI gateway.
const (
	factRequest         = "Tell me an interesting fact about English language history."
	factReplyRequest    = "Provide an encouraging response to: "
	coachingRequest     = "Provide live feedback on pronunciation and fluency for: "
	quizRequest         = "Ask a multiple-choice English grammar question and wait for the answer."
	quizAnswerRequest   = "Evaluate if this answer is correct: "
	conversationRequest = "Continue this conversation: "

	quizContextInstruction = "The question you asked was: %s"
	empathyInstruction     = "The caller sounds upset or frustrated. Acknowledge how they feel kindly before you continue."
)

// empathyThreshold is the sentiment score at or below which replies soften.
const empathyThreshold = -0.5
