package clickhouse

import (
	"context"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// Mirrorer appends a committed trade to the analytics mirror.
type Mirrorer interface {
	Mirror(ctx context.Context, t *domain.Trade)
}

// MirroredCommitter decorates a storage.TradeCommitter so every trade the
// transactional commit writes also reaches the analytics mirror. The mirror
// runs only after the primary commit succeeds; a failed commit mirrors
// nothing.
type MirroredCommitter struct {
	inner  storage.TradeCommitter
	mirror Mirrorer
}

// NewMirroredCommitter wraps a committer with the analytics mirror.
func NewMirroredCommitter(inner storage.TradeCommitter, mirror Mirrorer) *MirroredCommitter {
	return &MirroredCommitter{inner: inner, mirror: mirror}
}

// Compile-time interface check.
var _ storage.TradeCommitter = (*MirroredCommitter)(nil)

// CommitTradeResult applies the primary commit, then mirrors the trade.
func (c *MirroredCommitter) CommitTradeResult(ctx context.Context, res *domain.TradeResult) error {
	if err := c.inner.CommitTradeResult(ctx, res); err != nil {
		return err
	}
	c.mirror.Mirror(ctx, res.Trade)
	return nil
}
