// Package chain defines the read/write surface of the arena contract and the
// decoded event stream the indexer consumes.
package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SignerHandle is the opaque signing capability the writer needs.
// Satisfied by secrets.Signer.
type SignerHandle interface {
	Address() common.Address
	Key() *ecdsa.PrivateKey
}

// EpochInfo is one epoch's on-chain state.
// A zero StartTime means the epoch was never created.
type EpochInfo struct {
	StartTime int64 // Unix seconds
	EndTime   int64
	Ended     bool
}

// Reader reads arena contract and native chain state.
type Reader interface {
	// NativeBalance returns the native-currency balance of an address in wei.
	NativeBalance(ctx context.Context, addr string) (*big.Int, error)

	// StakedBalance returns an agent's staked balance in an arena, in wei.
	StakedBalance(ctx context.Context, arenaOnChainID, agentOnChainID int64) (*big.Int, error)

	// NextEpochID returns the arena's next-epoch-id counter.
	NextEpochID(ctx context.Context, arenaOnChainID int64) (int64, error)

	// EpochInfo reads one epoch's (start, end, ended) tuple.
	EpochInfo(ctx context.Context, arenaOnChainID, epochID int64) (EpochInfo, error)
}

// Writer submits arena contract transactions.
type Writer interface {
	// ExecuteTrade submits a trade authorization. Returns the transaction hash;
	// an empty hash without error must be treated as failure by callers.
	ExecuteTrade(ctx context.Context, signer SignerHandle, arenaOnChainID, epochID int64, action string, amount *big.Int) (string, error)

	// Deposit tops up an agent's staked balance in an arena.
	Deposit(ctx context.Context, signer SignerHandle, arenaOnChainID int64, amount *big.Int) error
}

// EventKind identifies one of the six mirrored contract events.
type EventKind string

const (
	EventAgentCreated      EventKind = "AgentCreated"
	EventArenaCreated      EventKind = "ArenaCreated"
	EventAgentRegistered   EventKind = "AgentRegistered"
	EventAgentUnregistered EventKind = "AgentUnregistered"
	EventAgentEpochRenewed EventKind = "AgentEpochRenewed"
	EventTradePlaced       EventKind = "TradePlaced"
)

// Event is a decoded arena contract log. Delivery is at-least-once; every
// consumer must be idempotent.
type Event struct {
	Kind        EventKind
	BlockNumber int64
	BlockTime   int64 // Unix seconds
	TxHash      string

	AgentOnChainID int64
	ArenaOnChainID int64
	Wallet         string // AgentCreated
	TokenAddress   string // ArenaCreated
	Name           string // AgentCreated, ArenaCreated
	EpochID        int64  // AgentEpochRenewed
	Action         string // TradePlaced
	Amount         *big.Int // TradePlaced, wei
}

// Subscriber streams decoded contract events.
type Subscriber interface {
	// SubscribeEvents starts streaming decoded events. The channel closes when
	// the subscription terminates.
	SubscribeEvents(ctx context.Context) (<-chan Event, error)
}
