package clickhouse

import (
	"context"
	"fmt"
	"log"

	"agent-arena/internal/domain"
	"agent-arena/internal/storage"
)

// TradeSink decorates a storage.TradeStore with a best-effort analytics
// mirror. Every committed trade is also appended to ClickHouse; a mirror
// failure is logged but never fails the primary write, so the transactional
// ledger in Postgres stays the source of truth.
type TradeSink struct {
	inner  storage.TradeStore
	conn   *Conn
	logger *log.Logger
}

// NewTradeSink wraps a TradeStore with the ClickHouse mirror.
func NewTradeSink(inner storage.TradeStore, conn *Conn, logger *log.Logger) *TradeSink {
	if logger == nil {
		logger = log.Default()
	}
	return &TradeSink{inner: inner, conn: conn, logger: logger}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeSink)(nil)

// Insert writes the primary row, then mirrors it.
func (s *TradeSink) Insert(ctx context.Context, t *domain.Trade) error {
	if err := s.inner.Insert(ctx, t); err != nil {
		return err
	}
	s.mirror(ctx, t)
	return nil
}

// ListByPair delegates to the primary store.
func (s *TradeSink) ListByPair(ctx context.Context, agentID, arenaID string) ([]*domain.Trade, error) {
	return s.inner.ListByPair(ctx, agentID, arenaID)
}

// StatsByArena delegates to the primary store.
func (s *TradeSink) StatsByArena(ctx context.Context, arenaID string) (map[string]storage.TradeStats, error) {
	return s.inner.StatsByArena(ctx, arenaID)
}

// Mirror appends a committed trade to the analytics table. Exposed so the
// transactional committer, which bypasses the TradeStore interface, can feed
// the mirror after its commit succeeds.
func (s *TradeSink) Mirror(ctx context.Context, t *domain.Trade) {
	s.mirror(ctx, t)
}

func (s *TradeSink) mirror(ctx context.Context, t *domain.Trade) {
	err := s.insertAnalytics(ctx, t)
	if err != nil {
		s.logger.Printf("[clickhouse] mirror trade %s: %v", t.TxHash, err)
	}
}

func (s *TradeSink) insertAnalytics(ctx context.Context, t *domain.Trade) error {
	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trade_analytics (
			trade_id, agent_id, arena_id, tick, action, size_pct, price,
			notional, cash_after, token_after, tx_hash, created_at_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		t.ID, t.AgentID, t.ArenaID, uint64(t.Tick), t.Action, t.SizePct, t.Price,
		t.Notional, t.CashAfter, t.TokenAfter, t.TxHash, uint64(t.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}
