package model

import (
	"fmt"
	"strings"
)

// NotFoundError reports a model name with no registry entry.
type NotFoundError struct{ Name string }

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("model %s not found", e.Name)
}

// NotRunningError reports a model that exists but failed its health probes.
type NotRunningError struct{ Name string }

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("model %s is not running", e.Name)
}

// CombinationError reports an invalid multi-model string, e.g. two LLMs.
type CombinationError struct{ Reason string }

func (e *CombinationError) Error() string { return e.Reason }

// ResolvedSet holds the outcome of parsing a `+`-joined model string. Each
// slot carries at most one model of its kind; unused slots are nil.
type ResolvedSet struct {
	LLM *Model
	TTS *Model
	STT *Model
}

// JoinedName reconstructs the client-facing model string for the set, in
// LLM+TTS+STT order.
func (s *ResolvedSet) JoinedName() string {
	var parts []string
	for _, m := range []*Model{s.LLM, s.TTS, s.STT} {
		if m != nil {
			parts = append(parts, m.Record.ResolveName)
		}
	}
	return strings.Join(parts, "+")
}

// Resolve parses a `+`-joined model string ("gpt-oss-20b+kokoro") and returns
// the set of models it names. Every named model must exist and be running,
// and each kind may appear at most once. Which slots must be populated is the
// caller's concern — a chat request needs LLM, the realtime loop needs all
// three.
func (r *Registry) Resolve(name string) (*ResolvedSet, error) {
	set := &ResolvedSet{}

	for _, part := range strings.Split(name, "+") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		m, ok := r.byName[part]
		if !ok {
			return nil, &NotFoundError{Name: part}
		}
		if !m.Status.Running() {
			return nil, &NotRunningError{Name: part}
		}

		var slot **Model
		switch m.Record.Kind {
		case KindLLM:
			slot = &set.LLM
		case KindTTS:
			slot = &set.TTS
		case KindSTT:
			slot = &set.STT
		default:
			return nil, fmt.Errorf("model: unknown kind %q", m.Record.Kind)
		}
		if *slot != nil {
			return nil, &CombinationError{
				Reason: fmt.Sprintf("only one %s model can be specified, got %s and %s",
					m.Record.Kind, (*slot).Record.ResolveName, part),
			}
		}
		*slot = m
	}

	if set.LLM == nil && set.TTS == nil && set.STT == nil {
		return nil, &NotFoundError{Name: name}
	}
	return set, nil
}
