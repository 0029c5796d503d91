// Package stub provides scripted chain doubles for tests and offline runs.
package stub

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"agent-arena/internal/chain"
)

// Reader is a scripted chain.Reader.
type Reader struct {
	mu       sync.Mutex
	Balances map[string]*big.Int                // by lowercased address
	Staked   map[[2]int64]*big.Int              // by (arenaID, agentID)
	Next     map[int64]int64                    // next epoch id by arena
	Epochs   map[[2]int64]chain.EpochInfo       // by (arenaID, epochID)
	Err      error                              // returned by every method when set
}

// NewReader creates an empty scripted reader.
func NewReader() *Reader {
	return &Reader{
		Balances: make(map[string]*big.Int),
		Staked:   make(map[[2]int64]*big.Int),
		Next:     make(map[int64]int64),
		Epochs:   make(map[[2]int64]chain.EpochInfo),
	}
}

func (r *Reader) NativeBalance(_ context.Context, addr string) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if bal, ok := r.Balances[addr]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (r *Reader) StakedBalance(_ context.Context, arenaOnChainID, agentOnChainID int64) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	if bal, ok := r.Staked[[2]int64{arenaOnChainID, agentOnChainID}]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (r *Reader) NextEpochID(_ context.Context, arenaOnChainID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return 0, r.Err
	}
	return r.Next[arenaOnChainID], nil
}

func (r *Reader) EpochInfo(_ context.Context, arenaOnChainID, epochID int64) (chain.EpochInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return chain.EpochInfo{}, r.Err
	}
	return r.Epochs[[2]int64{arenaOnChainID, epochID}], nil
}

var _ chain.Reader = (*Reader)(nil)

// TradeCall records one ExecuteTrade invocation.
type TradeCall struct {
	ArenaOnChainID int64
	EpochID        int64
	Action         string
	Amount         *big.Int
}

// DepositCall records one Deposit invocation.
type DepositCall struct {
	ArenaOnChainID int64
	Amount         *big.Int
}

// Writer is a scripted chain.Writer recording every call.
type Writer struct {
	mu       sync.Mutex
	Trades   []TradeCall
	Deposits []DepositCall

	Err       error // returned by every method when set
	EmptyHash bool  // ExecuteTrade returns "" without error
	hashSeq   int
}

// NewWriter creates an empty scripted writer.
func NewWriter() *Writer {
	return &Writer{}
}

func (w *Writer) ExecuteTrade(_ context.Context, _ chain.SignerHandle, arenaOnChainID, epochID int64, action string, amount *big.Int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return "", w.Err
	}
	if w.EmptyHash {
		return "", nil
	}
	w.Trades = append(w.Trades, TradeCall{
		ArenaOnChainID: arenaOnChainID,
		EpochID:        epochID,
		Action:         action,
		Amount:         new(big.Int).Set(amount),
	})
	w.hashSeq++
	return fmt.Sprintf("0xstub%064d", w.hashSeq), nil
}

func (w *Writer) Deposit(_ context.Context, _ chain.SignerHandle, arenaOnChainID int64, amount *big.Int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.Err != nil {
		return w.Err
	}
	w.Deposits = append(w.Deposits, DepositCall{ArenaOnChainID: arenaOnChainID, Amount: new(big.Int).Set(amount)})
	return nil
}

var _ chain.Writer = (*Writer)(nil)
