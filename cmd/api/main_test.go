package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/bakame-ivr/internal/config"
)

func TestSetupMetricsExposesIVRMetrics(t *testing.T) {
	handler, ivrMetrics := setupMetrics()
	if handler == nil || ivrMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	ivrMetrics.ObserveStep("menu", "dispatched")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "bakame_ivr_steps_total") {
		t.Fatalf("expected step counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors to be exported")
	}
}

func TestMediaStreamURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.Config
		want string
	}{
		{"disabled", appconfig.Config{PublicBaseURL: "https://ivr.example.com"}, ""},
		{"no base", appconfig.Config{StreamingEnabled: true}, ""},
		{"https", appconfig.Config{StreamingEnabled: true, PublicBaseURL: "https://ivr.example.com/"}, "wss://ivr.example.com/media-stream"},
		{"http", appconfig.Config{StreamingEnabled: true, PublicBaseURL: "http://localhost:8080"}, "ws://localhost:8080/media-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mediaStreamURL(&tt.cfg); got != tt.want {
				t.Fatalf("mediaStreamURL() = %q, want %q", got, tt.want)
			}
		})
	}
}
