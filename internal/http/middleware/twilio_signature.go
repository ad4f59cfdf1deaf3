package middleware

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"sort"
	"strings"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// TwilioSignature rejects callbacks whose X-Twilio-Signature does not match
// the HMAC-SHA1 of the public URL plus the sorted form parameters. An empty
// authToken disables the check.
func TwilioSignature(authToken, publicBaseURL string, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	base := strings.TrimRight(publicBaseURL, "/")
	return func(next http.Handler) http.Handler {
		if authToken == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "invalid form", http.StatusBadRequest)
				return
			}
			url := base + r.URL.RequestURI()
			if !ValidSignature(authToken, url, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
				logger.Warn("twilio signature rejected", "path", r.URL.Path, "call_sid", r.PostForm.Get("CallSid"))
				http.Error(w, "invalid signature", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidSignature reports whether signature matches url and params under authToken.
func ValidSignature(authToken, url string, params map[string][]string, signature string) bool {
	if signature == "" {
		return false
	}
	expected := ComputeSignature(authToken, url, params)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ComputeSignature returns the base64 HMAC-SHA1 Twilio signs callbacks with.
func ComputeSignature(authToken, url string, params map[string][]string) string {
	var b strings.Builder
	b.WriteString(url)
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range params[k] {
			b.WriteString(k)
			b.WriteString(v)
		}
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
