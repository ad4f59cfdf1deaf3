package archive

import "time"

const recordVersion = "1.0"

// CallRecord is the structure archived to S3 once a call completes.
type CallRecord struct {
	Version         string        `json:"version"`
	CallSID         string        `json:"call_sid"`
	PhoneHash       string        `json:"phone_hash,omitempty"`
	ArchivedAt      time.Time     `json:"archived_at"`
	DurationSeconds int           `json:"duration_seconds"`
	Status          string        `json:"status"`
	Outcome         string        `json:"outcome"`
	LastStep        string        `json:"last_step,omitempty"`
	Learner         Learner       `json:"learner"`
	MessageCount    int           `json:"message_count"`
	Messages        []Message     `json:"messages"`
	Interactions    []Interaction `json:"interactions"`
}

// Learner is what the call learned about the caller.
type Learner struct {
	Name      string  `json:"name,omitempty"`
	ID        string  `json:"id,omitempty"`
	Language  string  `json:"language"`
	Sentiment float64 `json:"sentiment"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Interaction struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// ManifestEntry is one JSONL line in the monthly manifest file.
type ManifestEntry struct {
	CallSID         string `json:"call_sid"`
	S3Key           string `json:"s3_key"`
	Outcome         string `json:"outcome"`
	ArchivedAt      string `json:"archived_at"`
	DurationSeconds int    `json:"duration_seconds"`
	MessageCount    int    `json:"message_count"`
}
