// Package profile parses and validates agent strategy profiles.
package profile

import (
	"encoding/json"
	"fmt"
)

// Profile holds the per-agent trading constraints the guardrail engine enforces.
// All values are the agent's own configuration, passed through unmodified.
type Profile struct {
	Persona            string  `json:"persona,omitempty"`
	MinEvents1h        int     `json:"minEvents1h"`
	MinVolume1h        float64 `json:"minVolume1h"`
	CooldownTicks      int64   `json:"cooldownTicks"`
	MaxTradesPerWindow int     `json:"maxTradesPerWindow"`
	MaxTradePct        float64 `json:"maxTradePct"`
	MaxPositionPct     float64 `json:"maxPositionPct"`
}

// Parse decodes and validates a raw JSON profile config.
func Parse(raw string) (*Profile, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty profile config")
	}

	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode profile config: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks profile bounds.
func (p *Profile) Validate() error {
	if p.MinEvents1h < 0 {
		return fmt.Errorf("minEvents1h must be >= 0, got %d", p.MinEvents1h)
	}
	if p.MinVolume1h < 0 {
		return fmt.Errorf("minVolume1h must be >= 0, got %f", p.MinVolume1h)
	}
	if p.CooldownTicks < 0 {
		return fmt.Errorf("cooldownTicks must be >= 0, got %d", p.CooldownTicks)
	}
	if p.MaxTradesPerWindow <= 0 {
		return fmt.Errorf("maxTradesPerWindow must be > 0, got %d", p.MaxTradesPerWindow)
	}
	if p.MaxTradePct <= 0 || p.MaxTradePct > 1 {
		return fmt.Errorf("maxTradePct must be in (0,1], got %f", p.MaxTradePct)
	}
	if p.MaxPositionPct <= 0 || p.MaxPositionPct > 1 {
		return fmt.Errorf("maxPositionPct must be in (0,1], got %f", p.MaxPositionPct)
	}
	return nil
}
