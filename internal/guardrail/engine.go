// Package guardrail applies deterministic policy checks to oracle suggestions.
// Checks run in a fixed order and the first match wins; every override clamps
// the suggestion to HOLD with a reason tagging both the oracle intent and the
// override cause. All thresholds are the agent's own configured values.
package guardrail

import (
	"fmt"

	"agent-arena/internal/domain"
	"agent-arena/internal/profile"
)

// Gate names, reported in override order.
const (
	GateEvents      = "min_events"
	GateVolume      = "min_volume"
	GateCooldown    = "cooldown"
	GateRateLimit   = "rate_limit"
	GateSize        = "non_positive_size"
	GatePositionCap = "position_cap"
)

// Input holds everything the engine needs for one evaluation.
type Input struct {
	Suggestion domain.Suggestion
	Profile    *profile.Profile
	Portfolio  *domain.Portfolio
	Snapshot   *domain.MarketSnapshot
	Tick       int64
}

// Apply evaluates the ordered gates and returns the final decision plus the
// name of the gate that fired, or "" when the suggestion passed through
// (possibly with its size clamped).
func Apply(in Input) (domain.Suggestion, string) {
	sug := in.Suggestion
	prof := in.Profile
	pf := in.Portfolio
	snap := in.Snapshot

	// 1. Hourly event count below minimum.
	if snap.Events1h < prof.MinEvents1h {
		return hold(sug, fmt.Sprintf("events_1h below minimum (%d < %d)", snap.Events1h, prof.MinEvents1h)), GateEvents
	}

	// 2. Hourly volume below minimum.
	if snap.Volume1h < prof.MinVolume1h {
		return hold(sug, fmt.Sprintf("volume_1h below minimum (%.4f < %.4f)", snap.Volume1h, prof.MinVolume1h)), GateVolume
	}

	// 3. Cooldown since last trade.
	if pf.LastTradeTick != nil && in.Tick-*pf.LastTradeTick < prof.CooldownTicks {
		return hold(sug, fmt.Sprintf("cooldown active (%d ticks since last trade, need %d)", in.Tick-*pf.LastTradeTick, prof.CooldownTicks)), GateCooldown
	}

	// 4. Trades-per-window rate limit.
	if pf.TradesThisWindow >= prof.MaxTradesPerWindow {
		return hold(sug, fmt.Sprintf("trade window limit reached (%d/%d)", pf.TradesThisWindow, prof.MaxTradesPerWindow)), GateRateLimit
	}

	// 5. Non-positive size.
	if sug.SizePct <= 0 {
		return hold(sug, fmt.Sprintf("non-positive size (%.4f)", sug.SizePct)), GateSize
	}

	// 6. Clamp size, never raise.
	if sug.SizePct > prof.MaxTradePct {
		sug.SizePct = prof.MaxTradePct
	}

	// 7. Position cap, BUY only.
	if sug.Action == domain.ActionBuy {
		if frac := pf.PositionFraction(snap.Price); frac >= prof.MaxPositionPct {
			return hold(sug, fmt.Sprintf("position cap reached (%.4f >= %.4f)", frac, prof.MaxPositionPct)), GatePositionCap
		}
	}

	return sug, ""
}

// hold clamps a suggestion to HOLD, preserving the oracle intent in the reason.
func hold(sug domain.Suggestion, cause string) domain.Suggestion {
	return domain.Suggestion{
		Action:     domain.ActionHold,
		SizePct:    0,
		Confidence: sug.Confidence,
		Reason:     fmt.Sprintf("guardrail override of %s %.4f: %s", sug.Action, sug.SizePct, cause),
	}
}
