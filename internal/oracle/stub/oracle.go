// Package stub provides scripted oracles for tests.
package stub

import (
	"context"

	"agent-arena/internal/domain"
	"agent-arena/internal/oracle"
)

// Oracle returns a fixed suggestion, or a fixed error.
type Oracle struct {
	Suggestion domain.Suggestion
	Err        error
	Calls      int
}

// Decide returns the scripted suggestion.
func (o *Oracle) Decide(_ context.Context, _ *oracle.DecisionContext) (*domain.Suggestion, error) {
	o.Calls++
	if o.Err != nil {
		return nil, o.Err
	}
	sug := o.Suggestion
	return &sug, nil
}

var _ oracle.Oracle = (*Oracle)(nil)
