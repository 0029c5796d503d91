package clickhouse

import (
	"context"
	"errors"
	"testing"

	"agent-arena/internal/domain"
)

type fakeCommitter struct {
	err   error
	calls int
}

func (f *fakeCommitter) CommitTradeResult(_ context.Context, _ *domain.TradeResult) error {
	f.calls++
	return f.err
}

type fakeMirror struct {
	trades []*domain.Trade
}

func (f *fakeMirror) Mirror(_ context.Context, t *domain.Trade) {
	f.trades = append(f.trades, t)
}

func TestMirroredCommitter_MirrorsAfterCommit(t *testing.T) {
	inner := &fakeCommitter{}
	mirror := &fakeMirror{}
	c := NewMirroredCommitter(inner, mirror)

	trade := &domain.Trade{ID: "t1", TxHash: "0xabc"}
	err := c.CommitTradeResult(context.Background(), &domain.TradeResult{Trade: trade})
	if err != nil {
		t.Fatalf("CommitTradeResult failed: %v", err)
	}

	if inner.calls != 1 {
		t.Fatalf("Expected 1 primary commit, got %d", inner.calls)
	}
	if len(mirror.trades) != 1 || mirror.trades[0] != trade {
		t.Fatalf("Expected the committed trade mirrored once, got %+v", mirror.trades)
	}
}

func TestMirroredCommitter_FailedCommitMirrorsNothing(t *testing.T) {
	inner := &fakeCommitter{err: errors.New("commit rejected")}
	mirror := &fakeMirror{}
	c := NewMirroredCommitter(inner, mirror)

	err := c.CommitTradeResult(context.Background(), &domain.TradeResult{Trade: &domain.Trade{ID: "t1"}})
	if err == nil {
		t.Fatal("Expected the primary error to surface")
	}
	if len(mirror.trades) != 0 {
		t.Fatalf("Failed commit must not mirror, got %d trades", len(mirror.trades))
	}
}
