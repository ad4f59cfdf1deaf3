package ai

import (
	"context"
	"sync"
)

type stubLLM struct {
	mu       sync.Mutex
	requests []LLMRequest
	replies  []string
	err      error
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	if len(s.replies) == 0 {
		return LLMResponse{Text: "ok"}, nil
	}
	text := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return LLMResponse{Text: text}, nil
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type upstreamRecorder struct {
	mu       sync.Mutex
	statuses []string
}

func (r *upstreamRecorder) ObserveUpstream(service, status string, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, service+":"+status)
}
