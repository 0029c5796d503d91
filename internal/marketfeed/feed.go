// Package marketfeed supplies current market snapshots per token.
package marketfeed

import (
	"context"
	"errors"

	"agent-arena/internal/domain"
)

// ErrNoSnapshot is returned when no (fresh) snapshot exists for a token.
// The scheduler treats it as a non-fatal skip for the whole arena.
var ErrNoSnapshot = errors.New("no market snapshot for token")

// Feed supplies the current market snapshot for a token.
type Feed interface {
	Get(ctx context.Context, tokenAddress string) (*domain.MarketSnapshot, error)
}
