// Package inference resolves untyped attribute references in a planned
// filter against local knowledge and the backend, so every wire call that
// needs a concrete attribute type gets one before dispatch.
package inference

import (
	"github.com/neptune-ai/fetcher-go/pkg/attribute"
	"github.com/neptune-ai/fetcher-go/pkg/fetcherr"
	"github.com/neptune-ai/fetcher-go/pkg/nql"
)

// Status of a single attribute reference during inference.
type Status int

const (
	StatusPending Status = iota
	StatusInferred
	StatusFailed
)

// Candidate tracks one attribute reference. Attr aliases the planned filter
// tree, so resolving a candidate types the plan in place.
type Candidate struct {
	Attr   *nql.Attribute
	Status Status
	Reason string
}

func (c *Candidate) resolve(t attribute.Type, reason string) {
	c.Attr.Type = t
	c.Status = StatusInferred
	c.Reason = reason
}

func (c *Candidate) fail(reason string) {
	c.Status = StatusFailed
	c.Reason = reason
}

// State is the outcome of one inference run over a filter or a sort-by
// attribute.
type State struct {
	Candidates []*Candidate

	// RunDomainEmpty is set when the backend returned no runs matching the
	// filter during sort-by inference. Callers short-circuit to an empty
	// result instead of raising.
	RunDomainEmpty bool
}

func newState(attrs []*nql.Attribute) *State {
	s := &State{Candidates: make([]*Candidate, 0, len(attrs))}
	for _, attr := range attrs {
		c := &Candidate{Attr: attr}
		if attr.Type != attribute.TypeUnknown {
			c.Status = StatusInferred
			c.Reason = "explicit type"
		}
		s.Candidates = append(s.Candidates, c)
	}
	return s
}

func (s *State) pending() []*Candidate {
	var out []*Candidate
	for _, c := range s.Candidates {
		if c.Status == StatusPending {
			out = append(out, c)
		}
	}
	return out
}

// Failures lists the attributes whose type could not be resolved, one entry
// per attribute name.
func (s *State) Failures() []fetcherr.InferenceFailure {
	var out []fetcherr.InferenceFailure
	seen := make(map[string]struct{})
	for _, c := range s.Candidates {
		if c.Status == StatusInferred {
			continue
		}
		if _, ok := seen[c.Attr.Name]; ok {
			continue
		}
		seen[c.Attr.Name] = struct{}{}
		reason := c.Reason
		if reason == "" {
			reason = "type could not be resolved"
		}
		out = append(out, fetcherr.InferenceFailure{Name: c.Attr.Name, Reason: reason})
	}
	return out
}

// Err returns an AttributeTypeInferenceError listing every failure, or nil
// when all candidates resolved.
func (s *State) Err() error {
	failures := s.Failures()
	if len(failures) == 0 {
		return nil
	}
	return &fetcherr.AttributeTypeInferenceError{Failures: failures}
}
