// Package decide abstracts the operator decisions a reconciliation needs:
// skip an unknown item, skip an item without family, overwrite an existing
// inventory, retry a locked directory or fall back to a renamed one.
//
// A Decider answers true to proceed and false to abort. Implementations range
// from an interactive terminal prompt to fixed per-kind answers for
// unattended runs and scripted queues for tests.
package decide

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentstation/stocktake/pkg/errors"
)

// Kind identifies the question being asked.
type Kind string

// Decision kinds.
const (
	KindUnknownItem    Kind = "unknown_item"
	KindOrphanFamily   Kind = "orphan_family"
	KindOverwrite      Kind = "overwrite"
	KindRetry          Kind = "retry"
	KindRenameFallback Kind = "rename_fallback"
)

// Kinds lists every decision kind.
func Kinds() []Kind {
	return []Kind{KindUnknownItem, KindOrphanFamily, KindOverwrite, KindRetry, KindRenameFallback}
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &errors.ValidationError{Field: "decision kind", Value: s, Message: "unknown decision kind"}
}

// Prompt is one question to the operator.
type Prompt struct {
	Kind    Kind
	Code    errors.Code
	Message string

	// Item is set for item level prompts.
	Item string

	// Path is set for directory prompts.
	Path string

	// Attempt and Max are set for retry prompts.
	Attempt int
	Max     int
}

// String renders the prompt as a single line question.
func (p Prompt) String() string {
	if p.Code != "" {
		return fmt.Sprintf("[%s] %s: %s", p.Code, p.Code.Title(), p.Message)
	}
	return p.Message
}

// Decider answers operator prompts.
type Decider interface {
	// Decide returns true to proceed and false to abort. An error, including
	// a cancelled context, is treated as abort by callers.
	Decide(ctx context.Context, p Prompt) (bool, error)
}

// Func adapts a function to a Decider.
type Func func(ctx context.Context, p Prompt) (bool, error)

// Decide implements Decider.
func (f Func) Decide(ctx context.Context, p Prompt) (bool, error) {
	return f(ctx, p)
}

// Always answers every prompt the same way.
func Always(answer bool) Decider {
	return Func(func(ctx context.Context, _ Prompt) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		return answer, nil
	})
}

// Policy answers with a fixed value per kind and delegates other kinds to
// Fallback. Without a fallback, unlisted kinds abort.
type Policy struct {
	Answers  map[Kind]bool
	Fallback Decider
}

// Decide implements Decider.
func (p *Policy) Decide(ctx context.Context, prompt Prompt) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if answer, ok := p.Answers[prompt.Kind]; ok {
		return answer, nil
	}
	if p.Fallback != nil {
		return p.Fallback.Decide(ctx, prompt)
	}
	return false, nil
}

// Script replays a queue of answers and records every prompt it receives.
// Running out of answers is an error.
type Script struct {
	mu      sync.Mutex
	answers []bool
	prompts []Prompt
}

// NewScript creates a scripted decider.
func NewScript(answers ...bool) *Script {
	return &Script{answers: answers}
}

// Decide implements Decider.
func (s *Script) Decide(ctx context.Context, p Prompt) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prompts = append(s.prompts, p)
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if len(s.answers) == 0 {
		return false, fmt.Errorf("no scripted answer for %s prompt", p.Kind)
	}
	answer := s.answers[0]
	s.answers = s.answers[1:]
	return answer, nil
}

// Prompts returns the prompts received so far.
func (s *Script) Prompts() []Prompt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Prompt, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// Kinds returns the kinds of the prompts received so far.
func (s *Script) Kinds() []Kind {
	prompts := s.Prompts()
	out := make([]Kind, len(prompts))
	for i, p := range prompts {
		out[i] = p.Kind
	}
	return out
}

// Remaining returns the number of unused answers.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}
