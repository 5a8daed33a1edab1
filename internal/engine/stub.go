package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/ajitpratap0/orgforge/internal/checkpoint"
)

// StubEngine is a deterministic Engine for tests: it replays canned
// responses per step and records every call.
type StubEngine struct {
	mu        sync.Mutex
	responses map[checkpoint.Step]string
	errs      map[checkpoint.Step]error
	calls     []checkpoint.Step
}

// NewStubEngine creates a stub with the given canned responses.
func NewStubEngine(responses map[checkpoint.Step]string) *StubEngine {
	if responses == nil {
		responses = make(map[checkpoint.Step]string)
	}
	return &StubEngine{
		responses: responses,
		errs:      make(map[checkpoint.Step]error),
	}
}

// FailStep makes the stub return err for a step.
func (s *StubEngine) FailStep(step checkpoint.Step, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[step] = err
}

// ExecuteStep returns the canned response for the step.
func (s *StubEngine) ExecuteStep(_ context.Context, sc StepContext) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sc.Step)
	if err := s.errs[sc.Step]; err != nil {
		return "", err
	}
	resp, ok := s.responses[sc.Step]
	if !ok {
		return "", fmt.Errorf("stub engine has no response for step %s", sc.Step)
	}
	return resp, nil
}

// Calls returns the steps executed so far, in order.
func (s *StubEngine) Calls() []checkpoint.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]checkpoint.Step(nil), s.calls...)
}
