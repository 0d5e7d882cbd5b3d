package validator

import (
	"context"
	"strings"
)

// ExactMatch accepts a submission equal to the canonical answer once both
// are trimmed of surrounding whitespace.
type ExactMatch struct{}

func (ExactMatch) Judge(_ context.Context, in Input) (*Verdict, error) {
	v := &Verdict{
		OK:      strings.TrimSpace(in.Submission) == strings.TrimSpace(in.Answer),
		Stage:   KindExactMatch,
		Details: map[string]any{"expected": in.Answer},
	}
	if !v.OK {
		v.Error = errorText("answer mismatch")
	}
	return v, nil
}
