package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
func HashPhone(phone string) string {
	if phone == "" {
		return ""
	}
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces spoken emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}

// structuralKeys hold flow metadata, not caller words, and are left as-is.
var structuralKeys = map[string]bool{
	"input":         true,
	"next":          true,
	"outcome":       true,
	"digits":        true,
	"recording_url": true,
}

// scrubRecord redacts message text and every free-text interaction payload
// value in place.
func scrubRecord(rec *CallRecord) {
	for i := range rec.Messages {
		rec.Messages[i].Content = ScrubPII(rec.Messages[i].Content)
	}
	for i := range rec.Interactions {
		for k, v := range rec.Interactions[i].Payload {
			text, ok := v.(string)
			if !ok || structuralKeys[k] {
				continue
			}
			rec.Interactions[i].Payload[k] = ScrubPII(text)
		}
	}
}
